package conv

const hexd = "0123456789ABCDEF"

// Hex writes n as "0x" and digits uppercase hex digits, zero-padded, at the
// end of buf and returns the used slice. No allocations; no fmt/strconv.
func Hex(buf []byte, n uint32, digits int) []byte {
	if digits < 1 || digits > 8 || len(buf) < digits+2 {
		return buf[:0]
	}
	i := len(buf)
	for j := 0; j < digits; j++ {
		i--
		buf[i] = hexd[n&0xF]
		n >>= 4
	}
	i -= 2
	buf[i], buf[i+1] = '0', 'x'
	return buf[i:]
}

// HexWidth is Hex with one digit per nibble of a bits-wide register.
func HexWidth(buf []byte, n uint32, bits int) []byte {
	return Hex(buf, n, (bits+3)/4)
}
