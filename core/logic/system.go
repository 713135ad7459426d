package logic

import (
	"errors"
	"slices"
	"strings"

	mmerrors "github.com/FocuswithJustin/mmdb/core/errors"
	"github.com/FocuswithJustin/mmdb/core/seq"
)

// Config configures a System.
type Config struct {
	// IntervalSize is the sequence interval size (0 = seq.DefaultIntervalSize).
	IntervalSize int
}

// System owns the symbol and statement tables, the scope stack and the
// sequence assigner. It is not safe for concurrent use: callers finish all
// structural updates before handing it to readers.
type System struct {
	symbols []*Symbol
	stmts   []Stmt

	symbolsByName map[string]SymID
	stmtsByLabel  map[string]StmtID

	scopes []*ScopeLevel
	seq    *seq.Assigner

	kindCounts map[StmtKind]int
}

// New creates an empty System with only the global scope open.
func New(cfg Config) (*System, error) {
	size := cfg.IntervalSize
	if size == 0 {
		size = seq.DefaultIntervalSize
	}
	assigner, err := seq.New(size)
	if err != nil {
		return nil, err
	}
	return &System{
		symbolsByName: make(map[string]SymID),
		stmtsByLabel:  make(map[string]StmtID),
		scopes:        []*ScopeLevel{{}},
		seq:           assigner,
		kindCounts:    make(map[StmtKind]int),
	}, nil
}

// NewDefault creates an empty System with the default configuration.
func NewDefault() *System {
	s, _ := New(Config{})
	return s
}

// Assigner returns the sequence assigner, for the incremental loader.
func (s *System) Assigner() *seq.Assigner { return s.seq }

// Symbol looks up a symbol by name.
func (s *System) Symbol(name string) (*Symbol, bool) {
	id, ok := s.symbolsByName[name]
	if !ok {
		return nil, false
	}
	return s.symbols[id], true
}

// SymbolByID returns the symbol with the given ID.
func (s *System) SymbolByID(id SymID) *Symbol {
	return s.symbols[id]
}

// Statement looks up a live statement by label.
func (s *System) Statement(label string) (Stmt, bool) {
	id, ok := s.stmtsByLabel[label]
	if !ok {
		return nil, false
	}
	return s.stmts[id], true
}

// StatementByID returns the statement with the given ID, including removed ones.
func (s *System) StatementByID(id StmtID) Stmt {
	return s.stmts[id]
}

// Symbols returns every symbol in seq order.
func (s *System) Symbols() []*Symbol {
	out := slices.Clone(s.symbols)
	slices.SortFunc(out, func(a, b *Symbol) int { return compareSeq(a.Seq, b.Seq) })
	return out
}

// Statements returns every live statement in seq order.
func (s *System) Statements() []Stmt {
	out := make([]Stmt, 0, len(s.stmtsByLabel))
	for _, st := range s.stmts {
		if !st.Base().removed {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b Stmt) int { return compareSeq(a.Base().Seq, b.Base().Seq) })
	return out
}

func compareSeq(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FormulaString renders a formula as space-separated symbol names.
func (s *System) FormulaString(formula []SymID) string {
	names := make([]string, len(formula))
	for i, id := range formula {
		names[i] = s.symbols[id].Name
	}
	return strings.Join(names, " ")
}

// withLabel attaches the statement label to a kernel error that lacks one.
func withLabel(err error, label string) error {
	var ke *mmerrors.KernelError
	if errors.As(err, &ke) && ke.Label == "" {
		ke.Label = label
	}
	return err
}

func (s *System) checkSymbolName(name string) error {
	if name == "" {
		return mmerrors.New(mmerrors.ErrBadFormula, "", "empty symbol name")
	}
	if _, ok := s.symbolsByName[name]; ok {
		return mmerrors.New(mmerrors.ErrDuplicateSymbol, name, "")
	}
	if _, ok := s.stmtsByLabel[name]; ok {
		return mmerrors.New(mmerrors.ErrDuplicateSymbol, name, "collides with a statement label")
	}
	return nil
}

func (s *System) checkLabel(label string) error {
	if label == "" {
		return mmerrors.New(mmerrors.ErrBadFormula, "", "empty statement label")
	}
	if _, ok := s.stmtsByLabel[label]; ok {
		return mmerrors.New(mmerrors.ErrDuplicateLabel, label, "")
	}
	if _, ok := s.symbolsByName[label]; ok {
		return mmerrors.New(mmerrors.ErrDuplicateLabel, label, "collides with a math symbol")
	}
	return nil
}

func (s *System) putSymbol(sym *Symbol) error {
	if _, ok := s.symbolsByName[sym.Name]; ok {
		return mmerrors.New(mmerrors.ErrDuplicateSymbol, sym.Name, "")
	}
	sym.ID = SymID(len(s.symbols))
	s.symbols = append(s.symbols, sym)
	s.symbolsByName[sym.Name] = sym.ID
	return nil
}

func (s *System) putStmt(st Stmt) error {
	b := st.Base()
	if _, ok := s.stmtsByLabel[b.Label]; ok {
		return mmerrors.New(mmerrors.ErrDuplicateLabel, b.Label, "")
	}
	b.ID = StmtID(len(s.stmts))
	s.stmts = append(s.stmts, st)
	s.stmtsByLabel[b.Label] = b.ID
	s.kindCounts[st.Kind()]++
	return nil
}

// resolveTypeCode resolves a statement's type code, which must be a constant.
func (s *System) resolveTypeCode(label, typeCode string) (SymID, error) {
	sym, ok := s.Symbol(typeCode)
	if !ok {
		return NoSym, mmerrors.Newf(mmerrors.ErrUndefinedSymbol, label, "type code %q is not declared", typeCode)
	}
	if sym.Kind != Constant {
		return NoSym, mmerrors.Newf(mmerrors.ErrUndefinedSymbol, label, "type code %q is not a constant", typeCode)
	}
	return sym.ID, nil
}

// resolveFormula resolves type code and symbols into a formula. With
// inScope set, every variable must be active and bound by an active
// variable hypothesis.
func (s *System) resolveFormula(label, typeCode string, symbols []string, inScope bool) ([]SymID, error) {
	typ, err := s.resolveTypeCode(label, typeCode)
	if err != nil {
		return nil, err
	}
	formula := make([]SymID, 0, len(symbols)+1)
	formula = append(formula, typ)
	for _, name := range symbols {
		sym, ok := s.Symbol(name)
		if !ok {
			return nil, mmerrors.Newf(mmerrors.ErrUndefinedSymbol, label, "math symbol %q is not declared", name)
		}
		if inScope && sym.IsVariable() {
			if !sym.Active {
				return nil, mmerrors.Newf(mmerrors.ErrUndefinedSymbol, label, "variable %q is not active", name)
			}
			if !sym.ActiveHyp.IsValid() {
				return nil, mmerrors.Newf(mmerrors.ErrInactiveHypothesis, label,
					"variable %q has no active variable hypothesis", name)
			}
		}
		formula = append(formula, sym.ID)
	}
	return formula, nil
}

func (s *System) nextSeq(label string) (int64, error) {
	n, err := s.seq.NextSeq()
	if err != nil {
		return 0, withLabel(err, label)
	}
	return n, nil
}

// AddConstant declares a constant. Constants may only be declared in the
// global scope.
func (s *System) AddConstant(name string) (*Symbol, error) {
	if s.ScopeDepth() != 0 {
		return nil, mmerrors.New(mmerrors.ErrScope, name, "constant declared inside a scope")
	}
	if err := s.checkSymbolName(name); err != nil {
		return nil, err
	}
	n, err := s.nextSeq(name)
	if err != nil {
		return nil, err
	}
	sym := &Symbol{Meta: Meta{Seq: n}, Name: name, Kind: Constant, ActiveHyp: NoStmt}
	if err := s.putSymbol(sym); err != nil {
		return nil, err
	}
	return sym, nil
}

// AddVariable declares a variable in the current scope. Redeclaring an
// inactive variable reactivates the existing symbol.
func (s *System) AddVariable(name string) (*Symbol, error) {
	if existing, ok := s.Symbol(name); ok {
		if existing.Kind != Variable {
			return nil, mmerrors.New(mmerrors.ErrDuplicateSymbol, name, "already declared as a constant")
		}
		if existing.Active {
			return nil, mmerrors.New(mmerrors.ErrDuplicateSymbol, name, "variable is already active")
		}
		existing.Active = true
		existing.ActiveHyp = NoStmt
		s.current().Vars = append(s.current().Vars, existing.ID)
		return existing, nil
	}
	if err := s.checkSymbolName(name); err != nil {
		return nil, err
	}
	n, err := s.nextSeq(name)
	if err != nil {
		return nil, err
	}
	sym := &Symbol{Meta: Meta{Seq: n}, Name: name, Kind: Variable, Active: true, ActiveHyp: NoStmt}
	if err := s.putSymbol(sym); err != nil {
		return nil, err
	}
	s.current().Vars = append(s.current().Vars, sym.ID)
	return sym, nil
}

// AddVarHyp declares a variable hypothesis and makes it the variable's
// active binding.
func (s *System) AddVarHyp(label, typeCode, variable string) (*VarHyp, error) {
	if err := s.checkLabel(label); err != nil {
		return nil, err
	}
	typ, err := s.resolveTypeCode(label, typeCode)
	if err != nil {
		return nil, err
	}
	v, ok := s.Symbol(variable)
	if !ok || v.Kind != Variable {
		return nil, mmerrors.Newf(mmerrors.ErrUndefinedSymbol, label, "%q is not a declared variable", variable)
	}
	if !v.Active {
		return nil, mmerrors.Newf(mmerrors.ErrUndefinedSymbol, label, "variable %q is not active", variable)
	}
	if v.ActiveHyp.IsValid() {
		return nil, mmerrors.Newf(mmerrors.ErrDuplicateSymbol, label,
			"variable %q is already bound by %q", variable, s.stmts[v.ActiveHyp].Base().Label)
	}
	n, err := s.nextSeq(label)
	if err != nil {
		return nil, err
	}

	vh := &VarHyp{
		StmtBase: StmtBase{
			Meta:     Meta{Seq: n},
			Label:    label,
			TypeCode: typ,
			Formula:  []SymID{typ, v.ID},
			Active:   true,
		},
		Var: v.ID,
	}
	if err := s.putStmt(vh); err != nil {
		return nil, err
	}
	v.ActiveHyp = vh.ID
	s.symbols[typ].VarType = true
	s.current().VarHyps = append(s.current().VarHyps, vh.ID)
	return vh, nil
}

// AddLogHyp declares a logical hypothesis in the current scope.
func (s *System) AddLogHyp(label, typeCode string, symbols []string) (*LogHyp, error) {
	if err := s.checkLabel(label); err != nil {
		return nil, err
	}
	formula, err := s.resolveFormula(label, typeCode, symbols, true)
	if err != nil {
		return nil, err
	}
	n, err := s.nextSeq(label)
	if err != nil {
		return nil, err
	}
	lh := &LogHyp{StmtBase: StmtBase{
		Meta:     Meta{Seq: n},
		Label:    label,
		TypeCode: formula[0],
		Formula:  formula,
		Active:   true,
	}}
	if err := s.putStmt(lh); err != nil {
		return nil, err
	}
	s.current().LogHyps = append(s.current().LogHyps, lh.ID)
	return lh, nil
}

// AddAxiom declares an axiom and builds its mandatory frame.
func (s *System) AddAxiom(label, typeCode string, symbols []string) (*Axiom, error) {
	if err := s.checkLabel(label); err != nil {
		return nil, err
	}
	formula, err := s.resolveFormula(label, typeCode, symbols, true)
	if err != nil {
		return nil, err
	}
	n, err := s.nextSeq(label)
	if err != nil {
		return nil, err
	}
	ax := &Axiom{
		StmtBase: StmtBase{
			Meta:     Meta{Seq: n},
			Label:    label,
			TypeCode: formula[0],
			Formula:  formula,
			Active:   true,
		},
		Frame: s.buildFrame(formula),
	}
	if s.symbols[ax.TypeCode].VarType {
		ax.VarHypReseq = s.varHypReseq(formula, &ax.Frame)
	}
	if err := s.putStmt(ax); err != nil {
		return nil, err
	}
	return ax, nil
}

// AddTheorem declares a theorem with an uncompressed proof. Each step is a
// statement label or "?" for an unknown step. A theorem whose proof fails
// validation is not inserted.
func (s *System) AddTheorem(label, typeCode string, symbols, proof []string) (*Theorem, error) {
	th, err := s.newScopedTheorem(label, typeCode, symbols)
	if err != nil {
		return nil, err
	}
	th.Proof, err = s.ValidateProofList(label, proof, th.Seq, &th.Frame, &th.OptFrame)
	if err != nil {
		return nil, err
	}
	if err := s.putStmt(th); err != nil {
		return nil, err
	}
	return th, nil
}

// AddTheoremCompressed declares a theorem with a compressed proof: the
// parenthesized label list and the numeral blocks that follow it.
func (s *System) AddTheoremCompressed(label, typeCode string, symbols, labels, blocks []string) (*Theorem, error) {
	th, err := s.newScopedTheorem(label, typeCode, symbols)
	if err != nil {
		return nil, err
	}
	th.Proof, err = s.DecompressProof(label, th.Seq, &th.Frame, &th.OptFrame, labels, blocks)
	if err != nil {
		return nil, err
	}
	if err := s.putStmt(th); err != nil {
		return nil, err
	}
	return th, nil
}

func (s *System) newScopedTheorem(label, typeCode string, symbols []string) (*Theorem, error) {
	if err := s.checkLabel(label); err != nil {
		return nil, err
	}
	formula, err := s.resolveFormula(label, typeCode, symbols, true)
	if err != nil {
		return nil, err
	}
	n, err := s.nextSeq(label)
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
		Frame: s.buildFrame(formula),
	}
	th.OptFrame = s.buildOptFrame(&th.Frame)
	return th, nil
}

// AddDjVars records a disjoint-variable restriction in the current scope.
// If the current level already holds an equal pair, that pair is returned.
func (s *System) AddDjVars(a, b string) (DjVars, error) {
	va, err := s.activeVariable(a)
	if err != nil {
		return DjVars{}, err
	}
	vb, err := s.activeVariable(b)
	if err != nil {
		return DjVars{}, err
	}
	if va == vb {
		return DjVars{}, mmerrors.Newf(mmerrors.ErrBadFormula, a, "variable %q cannot be disjoint from itself", a)
	}
	d := s.makeDjVars(va, vb)
	level := s.current()
	if existing, ok := level.findDjVars(d); ok {
		return existing, nil
	}
	level.DjVars = append(level.DjVars, d)
	return d, nil
}

func (s *System) activeVariable(name string) (SymID, error) {
	sym, ok := s.Symbol(name)
	if !ok || sym.Kind != Variable {
		return NoSym, mmerrors.New(mmerrors.ErrUndefinedSymbol, name, "not a declared variable")
	}
	if !sym.Active {
		return NoSym, mmerrors.New(mmerrors.ErrUndefinedSymbol, name, "variable is not active")
	}
	return sym.ID, nil
}
