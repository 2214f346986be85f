// Package regmap translates between the controller's 32-bit hardware
// registers and named field views. Encoding is pure: malformed register
// contents decode to whatever the bit pattern implies, validity is the
// transaction engines' job.
//
// The same field tables drive both construction and the String formatters,
// so debug output can never drift from the wire layout.
package regmap

func get(v uint32, shift, width uint) uint32 {
	return (v >> shift) & (1<<width - 1)
}

func put(v, f uint32, shift, width uint) uint32 {
	return v | (f&(1<<width-1))<<shift
}

func getBit(v uint32, shift uint) bool {
	return v>>shift&1 == 1
}

func putBit(v uint32, f bool, shift uint) uint32 {
	if f {
		return v | 1<<shift
	}
	return v
}
