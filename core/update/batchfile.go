package update

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// batchFile is the YAML layout of a batch:
//
//	theorems:
//	  - label: a1i
//	    after: ax-mp
//	    formula: "|- ( ps -> ph )"
//	    hyps:
//	      - label: a1i.1
//	        formula: "|- ph"
//	    dj: ["ph ps"]
//	    proof: "wph wps wph wi a1i.1 wph wps ax-1 ax-mp"
//
// Formulas start with the type code and, like proofs, are whitespace
// separated.
type batchFile struct {
	Theorems []theoremEntry `yaml:"theorems"`
}

type theoremEntry struct {
	Label   string     `yaml:"label"`
	After   string     `yaml:"after"`
	Formula string     `yaml:"formula"`
	Hyps    []hypEntry `yaml:"hyps"`
	VarHyps []string   `yaml:"var_hyps"`
	DjVars  []string   `yaml:"dj"`
	Proof   string     `yaml:"proof"`
}

type hypEntry struct {
	Label   string `yaml:"label"`
	Formula string `yaml:"formula"`
}

func splitFormula(label, formula string) (string, []string, error) {
	f := strings.Fields(formula)
	if len(f) == 0 {
		return "", nil, fmt.Errorf("%s: empty formula", label)
	}
	return f[0], f[1:], nil
}

// ReadBatch decodes a YAML batch file into theorems.
func ReadBatch(r io.Reader) ([]Theorem, error) {
	var file batchFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}

	out := make([]Theorem, 0, len(file.Theorems))
	for i, e := range file.Theorems {
		if e.Label == "" {
			return nil, fmt.Errorf("theorem %d: missing label", i+1)
		}
		typ, syms, err := splitFormula(e.Label, e.Formula)
		if err != nil {
			return nil, err
		}
		t := Theorem{
			Label:    e.Label,
			TypeCode: typ,
			Symbols:  syms,
			After:    e.After,
			VarHyps:  e.VarHyps,
			Proof:    strings.Fields(e.Proof),
		}
		for _, h := range e.Hyps {
			typ, syms, err := splitFormula(h.Label, h.Formula)
			if err != nil {
				return nil, err
			}
			t.LogHyps = append(t.LogHyps, Hyp{Label: h.Label, TypeCode: typ, Symbols: syms})
		}
		for _, d := range e.DjVars {
			vars := strings.Fields(d)
			for a := 0; a < len(vars); a++ {
				for b := a + 1; b < len(vars); b++ {
					t.DjVars = append(t.DjVars, [2]string{vars[a], vars[b]})
				}
			}
		}
		out = append(out, t)
	}
	return out, nil
}
