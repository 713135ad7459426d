package logic

// Stats summarizes the contents of a System.
type Stats struct {
	Constants     int   `json:"constants"`
	Variables     int   `json:"variables"`
	VarHyps       int   `json:"var_hyps"`
	LogHyps       int   `json:"log_hyps"`
	Axioms        int   `json:"axioms"`
	Theorems      int   `json:"theorems"`
	ScopeDepth    int   `json:"scope_depth"`
	ObjectCount   int64 `json:"object_count"`
	IntervalsUsed int64 `json:"intervals_used"`
}

// Statements returns the total live statement count.
func (st Stats) Statements() int {
	return st.VarHyps + st.LogHyps + st.Axioms + st.Theorems
}

// Stats returns current counts.
func (s *System) Stats() Stats {
	st := Stats{
		VarHyps:       s.kindCounts[KindVarHyp],
		LogHyps:       s.kindCounts[KindLogHyp],
		Axioms:        s.kindCounts[KindAxiom],
		Theorems:      s.kindCounts[KindTheorem],
		ScopeDepth:    s.ScopeDepth(),
		ObjectCount:   s.seq.ObjectCount(),
		IntervalsUsed: s.seq.IntervalsUsed(),
	}
	for _, sym := range s.symbols {
		if sym.Kind == Constant {
			st.Constants++
		} else {
			st.Variables++
		}
	}
	return st
}
