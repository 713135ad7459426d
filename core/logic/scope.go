package logic

import (
	mmerrors "github.com/FocuswithJustin/mmdb/core/errors"
	"github.com/FocuswithJustin/mmdb/internal/logging"
)

// ScopeLevel records what was declared while one nesting level was open.
// Level 0 is the global scope and is never closed.
type ScopeLevel struct {
	Vars    []SymID
	VarHyps []StmtID
	LogHyps []StmtID
	DjVars  []DjVars
}

func (l *ScopeLevel) findDjVars(d DjVars) (DjVars, bool) {
	for _, existing := range l.DjVars {
		if existing == d {
			return existing, true
		}
	}
	return DjVars{}, false
}

func (s *System) current() *ScopeLevel {
	return s.scopes[len(s.scopes)-1]
}

// ScopeDepth returns the number of open levels above the global scope.
func (s *System) ScopeDepth() int {
	return len(s.scopes) - 1
}

// Scope returns the level at the given depth, 0 being global.
func (s *System) Scope(depth int) (*ScopeLevel, bool) {
	if depth < 0 || depth >= len(s.scopes) {
		return nil, false
	}
	return s.scopes[depth], true
}

// BeginScope opens a new, empty level.
func (s *System) BeginScope() {
	s.scopes = append(s.scopes, &ScopeLevel{})
	logging.ScopeEvent("begin", s.ScopeDepth())
}

// EndScope closes the current level, deactivating everything declared in it.
func (s *System) EndScope() error {
	if s.ScopeDepth() == 0 {
		return mmerrors.New(mmerrors.ErrScope, "", "end of scope without matching begin")
	}
	level := s.current()

	for _, v := range level.Vars {
		sym := s.symbols[v]
		sym.Active = false
		sym.ActiveHyp = NoStmt
	}
	for _, h := range level.VarHyps {
		vh := s.stmts[h].(*VarHyp)
		vh.Active = false
		if sym := s.symbols[vh.Var]; sym.ActiveHyp == h {
			sym.ActiveHyp = NoStmt
		}
	}
	for _, h := range level.LogHyps {
		s.stmts[h].Base().Active = false
	}

	s.scopes[len(s.scopes)-1] = nil
	s.scopes = s.scopes[:len(s.scopes)-1]
	logging.ScopeEvent("end", s.ScopeDepth(),
		"vars", len(level.Vars), "hyps", len(level.VarHyps)+len(level.LogHyps))
	return nil
}

// FinalizeEOF is called once the source is exhausted. An unmatched open
// scope is an error, unless loading stopped early on request, in which case
// the open levels are closed.
func (s *System) FinalizeEOF(prematureEOF bool) error {
	if s.ScopeDepth() == 0 {
		return nil
	}
	if !prematureEOF {
		return mmerrors.Newf(mmerrors.ErrScope, "", "%d scope(s) still open at end of file", s.ScopeDepth())
	}
	for s.ScopeDepth() > 0 {
		if err := s.EndScope(); err != nil {
			return err
		}
	}
	return nil
}
