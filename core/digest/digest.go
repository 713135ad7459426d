// Package digest fingerprints a loaded database.
//
// The fingerprint hashes a canonical text rendering of every symbol and
// statement in sequence order. Sequence numbers themselves are left out, so
// two databases holding the same declarations in the same order match
// whatever interval size or gap slots produced them.
package digest

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/mmdb/core/logic"
)

// Fingerprint holds both digests of a database.
type Fingerprint struct {
	SHA256     string `json:"sha256"`
	BLAKE3     string `json:"blake3"`
	Symbols    int    `json:"symbols"`
	Statements int    `json:"statements"`
}

// Equal reports whether two fingerprints name the same content.
func (f Fingerprint) Equal(o Fingerprint) bool {
	return f.SHA256 == o.SHA256 && f.BLAKE3 == o.BLAKE3
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("blake3:%s sha256:%s", f.BLAKE3, f.SHA256)
}

// Compute fingerprints sys.
func Compute(sys *logic.System) (Fingerprint, error) {
	sh := sha256.New()
	b3 := blake3.New()
	syms, stmts, err := write(io.MultiWriter(sh, b3), sys)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{
		SHA256:     hex.EncodeToString(sh.Sum(nil)),
		BLAKE3:     hex.EncodeToString(b3.Sum(nil)),
		Symbols:    syms,
		Statements: stmts,
	}, nil
}

// Canonical writes the text that Compute hashes.
func Canonical(w io.Writer, sys *logic.System) error {
	_, _, err := write(w, sys)
	return err
}

// Blake3Hex returns the hex BLAKE3-256 digest of data.
func Blake3Hex(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

func write(w io.Writer, sys *logic.System) (int, int, error) {
	bw := bufio.NewWriter(w)
	c := canon{w: bw, sys: sys}

	syms := sys.Symbols()
	for _, sym := range syms {
		kind := "$c"
		if sym.IsVariable() {
			kind = "$v"
		}
		c.line(kind, sym.Name)
	}
	stmts := sys.Statements()
	for _, st := range stmts {
		c.statement(st)
	}
	if err := bw.Flush(); err != nil {
		return 0, 0, fmt.Errorf("failed to write canonical form: %w", err)
	}
	return len(syms), len(stmts), nil
}

type canon struct {
	w   *bufio.Writer
	sys *logic.System
}

func (c *canon) line(fields ...string) {
	c.w.WriteString(strings.Join(fields, " "))
	c.w.WriteByte('\n')
}

func (c *canon) labels(ids []logic.StmtID) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if id == logic.NoStmt {
			out[i] = logic.UnknownStep
			continue
		}
		out[i] = c.sys.StatementByID(id).Base().Label
	}
	return strings.Join(out, " ")
}

func (c *canon) frame(tag string, f *logic.Frame) {
	c.line(tag, c.labels(f.Hyps))
	for _, d := range f.DjVars {
		c.line(tag+"d", c.sys.SymbolByID(d.Lo).Name, c.sys.SymbolByID(d.Hi).Name)
	}
}

func (c *canon) statement(st logic.Stmt) {
	b := st.Base()
	c.line(st.Kind().String(), b.Label, c.sys.FormulaString(b.Formula))
	switch s := st.(type) {
	case *logic.Axiom:
		c.frame("#", &s.Frame)
	case *logic.Theorem:
		c.frame("#", &s.Frame)
		c.frame("#o", &s.OptFrame)
		c.line("$=", c.labels(s.Proof))
	}
}
