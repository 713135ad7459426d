package logic

import (
	mmerrors "github.com/FocuswithJustin/mmdb/core/errors"
)

// The functions in this file let the incremental loader splice statements
// into a finished database. They bypass the scope stack and grouping
// metadata; the caller supplies sequence numbers and hypotheses.

// ResolveFormula resolves a formula without scope requirements: every
// symbol must be declared, but variables need not be active.
func (s *System) ResolveFormula(label, typeCode string, symbols []string) ([]SymID, error) {
	return s.resolveFormula(label, typeCode, symbols, false)
}

// MakeDjVars builds a canonical pair from two declared variables, active or not.
func (s *System) MakeDjVars(a, b string) (DjVars, error) {
	var ids [2]SymID
	for i, name := range []string{a, b} {
		sym, ok := s.Symbol(name)
		if !ok || sym.Kind != Variable {
			return DjVars{}, mmerrors.New(mmerrors.ErrUndefinedSymbol, name, "not a declared variable")
		}
		ids[i] = sym.ID
	}
	if ids[0] == ids[1] {
		return DjVars{}, mmerrors.Newf(mmerrors.ErrBadFormula, a, "variable %q cannot be disjoint from itself", a)
	}
	return s.makeDjVars(ids[0], ids[1]), nil
}

// NewLogHypAt builds an inactive logical hypothesis with the given seq. It
// is not inserted.
func (s *System) NewLogHypAt(label, typeCode string, symbols []string, n int64) (*LogHyp, error) {
	if err := s.checkLabel(label); err != nil {
		return nil, err
	}
	formula, err := s.ResolveFormula(label, typeCode, symbols)
	if err != nil {
		return nil, err
	}
	return &LogHyp{StmtBase: StmtBase{
		Meta:     Meta{Seq: n},
		Label:    label,
		TypeCode: formula[0],
		Formula:  formula,
	}}, nil
}

// NewTheoremAt builds a theorem with the given seq and explicit frames and
// validates its proof against them. It is not inserted.
func (s *System) NewTheoremAt(label, typeCode string, symbols []string, n int64, frame, opt Frame, proof []string) (*Theorem, error) {
	if err := s.checkLabel(label); err != nil {
		return nil, err
	}
	formula, err := s.ResolveFormula(label, typeCode, symbols)
	if err != nil {
		return nil, err
	}
	th := &Theorem{
		StmtBase: StmtBase{
			Meta:     Meta{Seq: n},
			Label:    label,
			TypeCode: formula[0],
			Formula:  formula,
			Active:   true,
		},
		Frame:    frame,
		OptFrame: opt,
	}
	th.Proof, err = s.ValidateProofList(label, proof, n, &th.Frame, &th.OptFrame)
	if err != nil {
		return nil, err
	}
	return th, nil
}

// InsertStatement adds a built statement to the statement table. The label
// must still be free.
func (s *System) InsertStatement(st Stmt) error {
	if err := s.checkLabel(st.Base().Label); err != nil {
		return err
	}
	return s.putStmt(st)
}

// RemoveStatement takes a statement out of the label table. Its ID stays
// allocated so older references remain resolvable through StatementByID.
func (s *System) RemoveStatement(label string) error {
	id, ok := s.stmtsByLabel[label]
	if !ok {
		return mmerrors.New(mmerrors.ErrUndefinedStatement, label, "")
	}
	st := s.stmts[id]
	if st.Kind() == KindVarHyp && st.Base().Active {
		return mmerrors.New(mmerrors.ErrScope, label, "cannot remove an active variable hypothesis")
	}
	st.Base().removed = true
	st.Base().Active = false
	delete(s.stmtsByLabel, label)
	s.kindCounts[st.Kind()]--
	return nil
}

// Removed reports whether the statement was taken out by RemoveStatement.
func (b *StmtBase) Removed() bool { return b.removed }
