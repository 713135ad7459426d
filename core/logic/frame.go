package logic

import (
	"slices"
)

// DjVars is a disjoint-variable restriction. Lo is the member declared first.
type DjVars struct {
	Lo SymID
	Hi SymID
}

// Frame is the set of hypotheses and disjoint-variable restrictions an
// assertion carries. Hyps is in declaration (seq) order.
type Frame struct {
	Hyps   []StmtID
	DjVars []DjVars
}

// HasHyp reports whether id is one of the frame's hypotheses.
func (f *Frame) HasHyp(id StmtID) bool {
	return slices.Contains(f.Hyps, id)
}

// HasDjVars reports whether the frame holds the pair.
func (f *Frame) HasDjVars(d DjVars) bool {
	return slices.Contains(f.DjVars, d)
}

// HypIndex returns the position of id in Hyps, or -1.
func (f *Frame) HypIndex(id StmtID) int {
	return slices.Index(f.Hyps, id)
}

// makeDjVars orders the pair by declaration seq.
func (s *System) makeDjVars(a, b SymID) DjVars {
	if s.symbols[b].Seq < s.symbols[a].Seq {
		a, b = b, a
	}
	return DjVars{Lo: a, Hi: b}
}

// varSet collects the variables of formulas in first-occurrence order.
type varSet struct {
	order []SymID
	seen  map[SymID]bool
}

func newVarSet() *varSet {
	return &varSet{seen: make(map[SymID]bool)}
}

func (vs *varSet) addFormula(s *System, formula []SymID) {
	for _, id := range formula {
		if s.symbols[id].IsVariable() && !vs.seen[id] {
			vs.seen[id] = true
			vs.order = append(vs.order, id)
		}
	}
}

func (s *System) sortBySeq(ids []StmtID) {
	slices.SortFunc(ids, func(a, b StmtID) int {
		sa, sb := s.stmts[a].Base().Seq, s.stmts[b].Base().Seq
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	})
}

// buildFrame builds the mandatory frame of a new assertion from the scope
// stack: every active logical hypothesis, the active variable hypotheses of
// variables in the formula or in those logical hypotheses, and the in-scope
// disjoint pairs over those variables.
func (s *System) buildFrame(formula []SymID) Frame {
	vars := newVarSet()
	vars.addFormula(s, formula)

	var hyps []StmtID
	for _, level := range s.scopes {
		for _, h := range level.LogHyps {
			hyps = append(hyps, h)
			vars.addFormula(s, s.stmts[h].Base().Formula)
		}
	}
	for _, v := range vars.order {
		if h := s.symbols[v].ActiveHyp; h.IsValid() {
			hyps = append(hyps, h)
		}
	}
	s.sortBySeq(hyps)

	var dj []DjVars
	seen := make(map[DjVars]bool)
	for _, level := range s.scopes {
		for _, d := range level.DjVars {
			if vars.seen[d.Lo] && vars.seen[d.Hi] && !seen[d] {
				seen[d] = true
				dj = append(dj, d)
			}
		}
	}
	return Frame{Hyps: hyps, DjVars: dj}
}

// buildOptFrame collects everything in scope that the mandatory frame left
// out. Outer levels are scanned first, so their entries come first.
func (s *System) buildOptFrame(mand *Frame) Frame {
	var opt Frame
	for _, level := range s.scopes {
		for _, h := range level.VarHyps {
			if !mand.HasHyp(h) {
				opt.Hyps = append(opt.Hyps, h)
			}
		}
	}

	seen := make(map[DjVars]bool, len(mand.DjVars))
	for _, d := range mand.DjVars {
		seen[d] = true
	}
	for _, level := range s.scopes {
		for _, d := range level.DjVars {
			if !seen[d] {
				seen[d] = true
				opt.DjVars = append(opt.DjVars, d)
			}
		}
	}
	return opt
}

// BuildExplicitFrames builds frames for an assertion whose hypotheses are
// given explicitly rather than taken from the scope stack, as the
// incremental loader does for statements spliced into a finished database.
// Every logical hypothesis in hyps is mandatory; a variable hypothesis is
// mandatory when its variable occurs in the formula or a logical hypothesis.
// Everything else lands in the optional frame.
func (s *System) BuildExplicitFrames(formula []SymID, hyps []StmtID, dj []DjVars) (mand, opt Frame) {
	vars := newVarSet()
	vars.addFormula(s, formula)
	for _, h := range hyps {
		if st := s.stmts[h]; st.Kind() == KindLogHyp {
			mand.Hyps = append(mand.Hyps, h)
			vars.addFormula(s, st.Base().Formula)
		}
	}
	for _, h := range hyps {
		if vh, ok := s.stmts[h].(*VarHyp); ok {
			if vars.seen[vh.Var] {
				mand.Hyps = append(mand.Hyps, h)
			} else {
				opt.Hyps = append(opt.Hyps, h)
			}
		}
	}
	s.sortBySeq(mand.Hyps)
	s.sortBySeq(opt.Hyps)

	seen := make(map[DjVars]bool)
	for _, d := range dj {
		if seen[d] {
			continue
		}
		seen[d] = true
		if vars.seen[d.Lo] && vars.seen[d.Hi] {
			mand.DjVars = append(mand.DjVars, d)
		} else {
			opt.DjVars = append(opt.DjVars, d)
		}
	}
	return mand, opt
}

// varHypReseq maps the formula order of an axiom's variables to the order of
// their hypotheses in the frame. It returns nil when the orders agree.
func (s *System) varHypReseq(formula []SymID, frame *Frame) []int {
	vars := newVarSet()
	vars.addFormula(s, formula)

	reseq := make([]int, len(vars.order))
	identity := true
	for i, v := range vars.order {
		reseq[i] = frame.HypIndex(s.symbols[v].ActiveHyp)
		if reseq[i] != i {
			identity = false
		}
	}
	if identity {
		return nil
	}
	return reseq
}
