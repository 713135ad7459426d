// Package proof implements the compressed-proof numeral alphabet used by
// Metamath databases.
//
// A compressed proof is one or more blocks of upper-case letters read as a
// single stream. Letters A..T end a numeral with a low digit 1..20, letters
// U..Y are high digits 1..5 that keep the numeral open, Z marks the step just
// produced for reuse, and ? is an unknown step.
package proof

import (
	"io"

	mmerrors "github.com/FocuswithJustin/mmdb/core/errors"
)

const (
	lowBase  = 20
	highBase = 5

	// RepeatMarker tags the previous step for reuse.
	RepeatMarker = 'Z'
	// UnknownMarker is an explicitly unknown step.
	UnknownMarker = '?'

	maxIndex = 1<<31 - 1
)

// Step is one decoded record.
type Step struct {
	// Index is the 1-based index the numeral encodes, or 0 for an unknown
	// step. For a repeat record it is the index of the step being tagged.
	Index int
	// Repeat is set on the record produced by a Z marker.
	Repeat bool
	// Offset is the absolute offset of the record's first character.
	Offset int
}

// Unknown reports whether the step is an explicitly unknown step.
func (s Step) Unknown() bool { return s.Index == 0 && !s.Repeat }

type lastKind int

const (
	lastNone lastKind = iota
	lastNumeral
	lastUnknown
	lastRepeat
)

// Decoder reads Steps from concatenated blocks, strictly left to right.
type Decoder struct {
	blocks []string
	block  int
	pos    int
	offset int

	last      lastKind
	lastIndex int
}

// NewDecoder returns a Decoder over the given blocks.
func NewDecoder(blocks ...string) *Decoder {
	return &Decoder{blocks: blocks}
}

// Offset returns the absolute offset of the next character to be read.
func (d *Decoder) Offset() int { return d.offset }

func (d *Decoder) peek() (byte, bool) {
	for d.block < len(d.blocks) {
		if d.pos < len(d.blocks[d.block]) {
			return d.blocks[d.block][d.pos], true
		}
		d.block++
		d.pos = 0
	}
	return 0, false
}

func (d *Decoder) advance() {
	d.pos++
	d.offset++
}

func encodingErr(offset int, c byte, kind error) error {
	return &mmerrors.EncodingError{Offset: offset, Char: c, Err: kind}
}

// Next returns the next Step, or io.EOF once every block is consumed.
func (d *Decoder) Next() (Step, error) {
	start := d.offset
	acc := 0
	open := false

	for {
		c, ok := d.peek()
		if !ok {
			if open {
				return Step{}, encodingErr(d.offset, 0, mmerrors.ErrPrematureEnd)
			}
			return Step{}, io.EOF
		}

		switch {
		case c >= 'A' && c <= 'T':
			d.advance()
			acc = acc*lowBase + int(c-'A') + 1
			if acc > maxIndex {
				return Step{}, encodingErr(start, c, mmerrors.ErrIndexRange)
			}
			d.last, d.lastIndex = lastNumeral, acc
			return Step{Index: acc, Offset: start}, nil

		case c >= 'U' && c <= 'Y':
			d.advance()
			acc = acc*highBase + int(c-'U') + 1
			if acc > maxIndex/lowBase {
				return Step{}, encodingErr(start, c, mmerrors.ErrIndexRange)
			}
			open = true

		case c == RepeatMarker:
			if open || d.last != lastNumeral {
				return Step{}, encodingErr(d.offset, c, mmerrors.ErrMalformedRepeat)
			}
			d.advance()
			d.last = lastRepeat
			return Step{Index: d.lastIndex, Repeat: true, Offset: start}, nil

		case c == UnknownMarker:
			if open {
				return Step{}, encodingErr(d.offset, c, mmerrors.ErrMalformedUnknown)
			}
			d.advance()
			d.last, d.lastIndex = lastUnknown, 0
			return Step{Offset: start}, nil

		default:
			return Step{}, encodingErr(d.offset, c, mmerrors.ErrInvalidCharacter)
		}
	}
}

// Decode reads every Step from the blocks.
func Decode(blocks ...string) ([]Step, error) {
	d := NewDecoder(blocks...)
	var steps []Step
	for {
		s, err := d.Next()
		if err == io.EOF {
			return steps, nil
		}
		if err != nil {
			return steps, err
		}
		steps = append(steps, s)
	}
}
