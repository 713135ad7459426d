package proof

import (
	"fmt"
	"strings"
)

// AppendNumeral appends the numeral for a 1-based index to buf.
func AppendNumeral(buf []byte, n int) []byte {
	if n < 1 {
		panic(fmt.Sprintf("proof: numeral index must be positive, got %d", n))
	}
	var digits [16]byte
	i := len(digits) - 1
	digits[i] = byte('A' + (n-1)%lowBase)
	n = (n - 1) / lowBase
	for n > 0 {
		i--
		digits[i] = byte('U' + (n-1)%highBase)
		n = (n - 1) / highBase
	}
	return append(buf, digits[i:]...)
}

// Numeral returns the numeral for a 1-based index.
func Numeral(n int) string {
	return string(AppendNumeral(nil, n))
}

// Encode renders Steps back into a single block. Repeat records emit Z,
// unknown steps emit ?.
func Encode(steps []Step) string {
	var buf []byte
	for _, s := range steps {
		switch {
		case s.Repeat:
			buf = append(buf, RepeatMarker)
		case s.Index == 0:
			buf = append(buf, UnknownMarker)
		default:
			buf = AppendNumeral(buf, s.Index)
		}
	}
	return string(buf)
}

// Split breaks an encoded proof into blocks of at most width characters,
// the way long proofs are wrapped in source files.
func Split(encoded string, width int) []string {
	if width <= 0 || len(encoded) <= width {
		return []string{encoded}
	}
	var blocks []string
	for len(encoded) > width {
		blocks = append(blocks, encoded[:width])
		encoded = encoded[width:]
	}
	if encoded != "" {
		blocks = append(blocks, encoded)
	}
	return blocks
}

// Join concatenates blocks into one string, dropping whitespace.
func Join(blocks []string) string {
	return strings.Join(strings.Fields(strings.Join(blocks, " ")), "")
}
