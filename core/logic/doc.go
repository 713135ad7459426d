// Package logic is the logical kernel of a Metamath database.
//
// A System owns every declared symbol and statement, enforces the shared
// namespace of math symbols and statement labels, tracks which variables and
// hypotheses are in scope, and builds the frames that define each assertion's
// substitution contract.
//
// # Arenas
//
// Symbols and statements live in append-only arenas and refer to each other
// by SymID and StmtID. Activating or deactivating a variable is a table
// update; nothing holds a pointer into another object's state.
//
// # Statements
//
//   - VarHyp ($f): binds one variable to a type code
//   - LogHyp ($e): an assumed formula
//   - Axiom ($a): an assertion with a mandatory frame
//   - Theorem ($p): an assertion with mandatory and optional frames and a proof
//
// # Ordering
//
// Every object gets a sequence number from core/seq when it is declared. A
// proof step may only refer to a statement with a lower sequence number, so
// the statements form a dependency DAG.
//
// # Example
//
//	sys := logic.NewDefault()
//	sys.AddConstant("wff")
//	sys.AddConstant("|-")
//	sys.AddVariable("ph")
//	sys.AddVarHyp("wph", "wff", "ph")
//	sys.BeginScope()
//	sys.AddLogHyp("min", "|-", []string{"ph"})
//	sys.AddAxiom("ax-mp", "|-", []string{"ph"})
//	sys.EndScope()
package logic
