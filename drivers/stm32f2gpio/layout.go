package stm32f2gpio

import "regmap-go/regs"

// RegisterMap is the register block of one GPIO port. Go field offsets
// equal the hardware offsets; 0x20 is a reserved word in this map.
type RegisterMap struct {
	MODER   regs.U32
	OTYPER  regs.U32
	OSPEEDR regs.U32
	PUPDR   regs.U32
	IDR     regs.U32 `reg:"ro"`
	ODR     regs.U32
	BSRRL   regs.U16 `reg:"wo"`
	BSRRH   regs.U16 `reg:"wo"`
	LCKR    regs.U32 `effect:"reads are steps of the lock key sequence"`
	_       regs.U32
	AFR     [2]regs.U32
}

// Layout is the GPIO port layout derived from RegisterMap.
var Layout = regs.MustLayoutOf("GPIO", RegisterMap{})
