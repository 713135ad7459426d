package logic

import (
	mmerrors "github.com/FocuswithJustin/mmdb/core/errors"
)

// SymID indexes the symbol arena. IDs are never reused.
type SymID int32

// StmtID indexes the statement arena. IDs are never reused, even after a
// statement is removed by an incremental update rollback.
type StmtID int32

const (
	// NoSym marks the absence of a symbol reference.
	NoSym SymID = -1
	// NoStmt marks the absence of a statement reference. In a proof it is an
	// explicitly unknown step.
	NoStmt StmtID = -1
)

// IsValid reports whether the ID refers to an allocated symbol.
func (id SymID) IsValid() bool { return id >= 0 }

// IsValid reports whether the ID refers to an allocated statement.
func (id StmtID) IsValid() bool { return id >= 0 }

// Meta holds what every symbol and statement carries besides its identity.
type Meta struct {
	// Seq is the global order number. It never changes once assigned.
	Seq int64

	// Chapter, Section and SectionSeq group the object for display. They are
	// set at most once.
	Chapter    int
	Section    int
	SectionSeq int
	grouped    bool

	Description string
	Pos         mmerrors.Position
}

// SetGrouping records grouping metadata. It reports false, and changes
// nothing, when grouping was already set.
func (m *Meta) SetGrouping(chapter, section, sectionSeq int) bool {
	if m.grouped {
		return false
	}
	m.Chapter, m.Section, m.SectionSeq = chapter, section, sectionSeq
	m.grouped = true
	return true
}

// Grouped reports whether grouping metadata was set.
func (m *Meta) Grouped() bool { return m.grouped }

// SymbolKind distinguishes constants from variables.
type SymbolKind uint8

const (
	Constant SymbolKind = iota + 1
	Variable
)

func (k SymbolKind) String() string {
	switch k {
	case Constant:
		return "constant"
	case Variable:
		return "variable"
	default:
		return "unknown"
	}
}

// Symbol is a declared math symbol.
type Symbol struct {
	Meta
	ID   SymID
	Name string
	Kind SymbolKind

	// VarType is set on a constant once it is the type code of some
	// variable hypothesis. It is never cleared.
	VarType bool

	// Active and ActiveHyp track a variable's scope state. ActiveHyp is the
	// one variable hypothesis currently binding the variable, or NoStmt.
	Active    bool
	ActiveHyp StmtID
}

// IsVariable reports whether the symbol is a variable.
func (s *Symbol) IsVariable() bool { return s.Kind == Variable }

// StmtKind distinguishes the four statement kinds.
type StmtKind uint8

const (
	KindVarHyp StmtKind = iota + 1
	KindLogHyp
	KindAxiom
	KindTheorem
)

func (k StmtKind) String() string {
	switch k {
	case KindVarHyp:
		return "$f"
	case KindLogHyp:
		return "$e"
	case KindAxiom:
		return "$a"
	case KindTheorem:
		return "$p"
	default:
		return "?"
	}
}

// IsHyp reports whether the kind is a hypothesis kind.
func (k StmtKind) IsHyp() bool { return k == KindVarHyp || k == KindLogHyp }

// Stmt is one of *VarHyp, *LogHyp, *Axiom or *Theorem.
type Stmt interface {
	Base() *StmtBase
	Kind() StmtKind
	isStmt()
}

// StmtBase holds the fields shared by all statements.
type StmtBase struct {
	Meta
	ID       StmtID
	Label    string
	TypeCode SymID
	// Formula starts with the type code.
	Formula []SymID
	Active  bool
	removed bool
}

// Base returns the shared fields.
func (b *StmtBase) Base() *StmtBase { return b }

// VarHyp declares the type of one variable.
type VarHyp struct {
	StmtBase
	Var SymID
}

// LogHyp is an assumed formula.
type LogHyp struct {
	StmtBase
}

// Axiom is an assertion accepted without proof.
type Axiom struct {
	StmtBase
	Frame Frame
	// VarHypReseq maps formula-order variable positions to positions in
	// Frame.Hyps. It is nil unless the two orders differ.
	VarHypReseq []int
}

// Theorem is an assertion with a proof.
type Theorem struct {
	StmtBase
	Frame    Frame
	OptFrame Frame
	// Proof holds one entry per step; NoStmt is an unknown step.
	Proof []StmtID
}

func (*VarHyp) Kind() StmtKind  { return KindVarHyp }
func (*LogHyp) Kind() StmtKind  { return KindLogHyp }
func (*Axiom) Kind() StmtKind   { return KindAxiom }
func (*Theorem) Kind() StmtKind { return KindTheorem }

func (*VarHyp) isStmt()  {}
func (*LogHyp) isStmt()  {}
func (*Axiom) isStmt()   {}
func (*Theorem) isStmt() {}

// AssertionFrame returns the mandatory frame of an axiom or theorem.
func AssertionFrame(s Stmt) (*Frame, bool) {
	switch a := s.(type) {
	case *Axiom:
		return &a.Frame, true
	case *Theorem:
		return &a.Frame, true
	default:
		return nil, false
	}
}
