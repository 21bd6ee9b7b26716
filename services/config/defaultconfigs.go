package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

// cfgSTM32F2 is the reference board: user LEDs on PB0/PB7/PB14, the user
// button on PC13 and an expander on I2C1.
const cfgSTM32F2 = `{
  "gpio": {
    "poll_ms": 5,
    "pins": [
      {"id": "led_green", "pin": "PB0", "mode": "output", "initial": false},
      {"id": "led_blue", "pin": "PB7", "mode": "output", "initial": false},
      {"id": "led_red", "pin": "PB14", "mode": "output", "initial": false},
      {"id": "button", "pin": "PC13", "mode": "input", "pull": "down",
       "edge": "rising", "debounce_ms": 30},
      {"id": "relay", "pin": "EXP0", "mode": "output", "initial": false},
      {"id": "door", "pin": "EXP8", "mode": "input", "invert": true, "edge": "both"}
    ]
  },
  "regsvc": {
    "blocks": ["GPIOA", "GPIOB", "GPIOC", "PCA9555@20"]
  },
  "heartbeat": {
    "interval": 5
  }
}`

// cfgSim drives simulated ports only.
const cfgSim = `{
  "gpio": {
    "poll_ms": 2,
    "pins": [
      {"id": "led", "pin": "PA5", "mode": "output", "initial": true},
      {"id": "button", "pin": "PC13", "mode": "input", "pull": "up",
       "invert": true, "edge": "falling", "debounce_ms": 10}
    ]
  },
  "regsvc": {
    "blocks": ["GPIOA", "GPIOC"]
  },
  "heartbeat": {
    "interval_ms": 500
  }
}`

var embeddedConfigs = map[string][]byte{
	"stm32f2": []byte(cfgSTM32F2),
	"sim":     []byte(cfgSim),
}
