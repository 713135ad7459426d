package logic

import (
	"testing"

	mmerrors "github.com/FocuswithJustin/mmdb/core/errors"
)

// wffFormula is ( ( ph -> ph ) -> ( ph -> ph ) ), whose only mandatory
// hypothesis is wph.
var wffFormula = []string{"(", "(", "ph", "->", "ph", ")", "->", "(", "ph", "->", "ph", ")", ")"}

func TestDecompressProof(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		blocks []string
		want   []string
	}{
		{
			name:   "plain",
			labels: []string{"wi"},
			blocks: []string{"AAB"},
			want:   []string{"wph", "wph", "wi"},
		},
		{
			name:   "tagged subproof reused",
			labels: []string{"wi"},
			blocks: []string{"AABZCB"},
			want:   []string{"wph", "wph", "wi", "wph", "wph", "wi", "wi"},
		},
		{
			name:   "split across blocks",
			labels: []string{"wi"},
			blocks: []string{"AA", "BZ", "C", "B"},
			want:   []string{"wph", "wph", "wi", "wph", "wph", "wi", "wi"},
		},
		{
			name:   "unknown steps",
			labels: []string{"wi"},
			blocks: []string{"A?B"},
			want:   []string{"wph", "?", "wi"},
		},
		{
			name:   "tag a single hypothesis",
			labels: []string{"wi"},
			blocks: []string{"AZCB"},
			want:   []string{"wph", "wph", "wi"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := newPropSystem(t)
			th, err := sys.AddTheoremCompressed("tz", "wff", wffFormula, tt.labels, tt.blocks)
			if err != nil {
				t.Fatalf("AddTheoremCompressed() error = %v", err)
			}
			if got := labelsOf(sys, th.Proof); !equalStrings(got, tt.want) {
				t.Errorf("Proof = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecompressProofErrors(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		blocks []string
		kind   error
	}{
		{"mandatory hyp in label list", []string{"wph", "wi"}, []string{"AAC"}, mmerrors.ErrMalformedProof},
		{"undefined label", []string{"nosuch"}, []string{"A"}, mmerrors.ErrUndefinedStatement},
		{"out-of-scope hypothesis", []string{"min"}, []string{"B"}, mmerrors.ErrInactiveHypothesis},
		{"index past saved steps", []string{"wi"}, []string{"AABD"}, mmerrors.ErrIndexRange},
		{"too few stack entries", []string{"wi"}, []string{"AB"}, mmerrors.ErrMalformedProof},
		{"repeat with nothing before", []string{"wi"}, []string{"ZA"}, mmerrors.ErrMalformedRepeat},
		{"invalid character", []string{"wi"}, []string{"AAb"}, mmerrors.ErrInvalidCharacter},
		{"open numeral", []string{"wi"}, []string{"AAU"}, mmerrors.ErrPrematureEnd},
		{"no steps", []string{"wi"}, nil, mmerrors.ErrEmptyProof},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := newPropSystem(t)
			_, err := sys.AddTheoremCompressed("tz", "wff", wffFormula, tt.labels, tt.blocks)
			wantErr(t, err, tt.kind)
			if _, ok := sys.Statement("tz"); ok {
				t.Error("rejected theorem was inserted")
			}
		})
	}
}

func TestDecompressEncodingOffset(t *testing.T) {
	sys := newPropSystem(t)
	_, err := sys.AddTheoremCompressed("tz", "wff", wffFormula, []string{"wi"}, []string{"AA", "B!"})
	var ee *mmerrors.EncodingError
	if !mmerrors.As(err, &ee) {
		t.Fatalf("error = %v, want *EncodingError", err)
	}
	if ee.Offset != 3 || ee.Char != '!' {
		t.Errorf("EncodingError = offset %d char %q, want 3 '!'", ee.Offset, ee.Char)
	}
	wantErr(t, err, mmerrors.ErrEncoding)
}

func TestDecompressForwardLabel(t *testing.T) {
	sys := newPropSystem(t)
	ax1, _ := sys.Statement("ax-1")
	var empty Frame
	_, err := sys.DecompressProof("early", ax1.Base().Seq, &empty, &empty, []string{"ax-1"}, []string{"A"})
	wantErr(t, err, mmerrors.ErrForwardReference)
}

func TestValidateProofList(t *testing.T) {
	sys := newPropSystem(t)
	var empty Frame
	const late = 1 << 40

	tests := []struct {
		name  string
		steps []string
		want  []string
		kind  error
	}{
		{"resolved", []string{"wph", "wps", "ax-1"}, []string{"wph", "wps", "ax-1"}, nil},
		{"unknown", []string{"?", "ax-1"}, []string{"?", "ax-1"}, nil},
		{"empty", nil, nil, mmerrors.ErrEmptyProof},
		{"undefined", []string{"wph", "zz"}, nil, mmerrors.ErrUndefinedStatement},
		{"inactive hypothesis", []string{"maj"}, nil, mmerrors.ErrInactiveHypothesis},
		{"self reference", []string{"wph", "t"}, nil, mmerrors.ErrForwardReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sys.ValidateProofList("t", tt.steps, late, &empty, &empty)
			if tt.kind != nil {
				wantErr(t, err, tt.kind)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if labels := labelsOf(sys, got); !equalStrings(labels, tt.want) {
				t.Errorf("steps = %v, want %v", labels, tt.want)
			}
		})
	}
}
