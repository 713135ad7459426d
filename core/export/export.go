// Package export writes a loaded database into SQLite tables.
//
// Statement and symbol rows use the kernel's arena IDs as primary keys, so
// frames and proofs reference them directly. One export fills an empty
// database inside a single transaction.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/mmdb/core/digest"
	"github.com/FocuswithJustin/mmdb/core/logic"
	"github.com/FocuswithJustin/mmdb/core/sqlite"
	"github.com/FocuswithJustin/mmdb/internal/logging"
)

// SchemaVersion is stored in the meta table.
const SchemaVersion = 1

const schema = `
	CREATE TABLE meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE symbols (
		id INTEGER PRIMARY KEY,
		seq INTEGER NOT NULL UNIQUE,
		name TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		var_type INTEGER NOT NULL
	);
	CREATE TABLE statements (
		id INTEGER PRIMARY KEY,
		seq INTEGER NOT NULL UNIQUE,
		label TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		type_code INTEGER NOT NULL REFERENCES symbols(id),
		formula TEXT NOT NULL,
		chapter INTEGER,
		section INTEGER,
		section_seq INTEGER,
		description TEXT,
		file TEXT,
		line INTEGER
	);
	CREATE TABLE frame_hyps (
		stmt_id INTEGER NOT NULL REFERENCES statements(id),
		optional INTEGER NOT NULL,
		pos INTEGER NOT NULL,
		hyp_id INTEGER NOT NULL REFERENCES statements(id),
		PRIMARY KEY (stmt_id, optional, pos)
	);
	CREATE TABLE djvars (
		stmt_id INTEGER NOT NULL REFERENCES statements(id),
		optional INTEGER NOT NULL,
		lo INTEGER NOT NULL REFERENCES symbols(id),
		hi INTEGER NOT NULL REFERENCES symbols(id),
		PRIMARY KEY (stmt_id, optional, lo, hi)
	);
	CREATE TABLE proof_steps (
		stmt_id INTEGER NOT NULL REFERENCES statements(id),
		step INTEGER NOT NULL,
		ref_id INTEGER REFERENCES statements(id),
		PRIMARY KEY (stmt_id, step)
	);
	CREATE INDEX idx_statements_kind ON statements(kind);
	CREATE INDEX idx_proof_steps_ref ON proof_steps(ref_id);
`

// Options describes the export.
type Options struct {
	// Source names the database file the System was loaded from.
	Source string
}

// Summary reports what an export wrote.
type Summary struct {
	RunID       string        `json:"run_id"`
	Symbols     int           `json:"symbols"`
	Statements  int           `json:"statements"`
	FrameHyps   int           `json:"frame_hyps"`
	ProofSteps  int           `json:"proof_steps"`
	Fingerprint string        `json:"fingerprint"`
	Duration    time.Duration `json:"duration"`
}

// ToFile creates the SQLite file at path and exports sys into it. The file
// must not already hold an export.
func ToFile(ctx context.Context, sys *logic.System, path string, opts Options) (*Summary, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return Export(ctx, db, sys, opts)
}

// Export writes sys into db in one transaction.
func Export(ctx context.Context, db *sql.DB, sys *logic.System, opts Options) (*Summary, error) {
	start := time.Now()
	fp, err := digest.Compute(sys)
	if err != nil {
		return nil, err
	}
	sum := &Summary{RunID: uuid.New().String(), Fingerprint: fp.BLAKE3}

	err = sqlite.WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		w, err := newWriter(ctx, tx, sys)
		if err != nil {
			return err
		}
		defer w.close()

		meta := map[string]string{
			"run_id":         sum.RunID,
			"schema_version": strconv.Itoa(SchemaVersion),
			"created_at":     time.Now().UTC().Format(time.RFC3339),
			"source":         opts.Source,
			"blake3":         fp.BLAKE3,
			"sha256":         fp.SHA256,
			"interval_size":  strconv.FormatInt(sys.Assigner().IntervalSize(), 10),
		}
		for k, v := range meta {
			if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
				return fmt.Errorf("failed to write meta %s: %w", k, err)
			}
		}
		return w.writeAll(sum)
	})
	if err != nil {
		return nil, err
	}

	sum.Duration = time.Since(start)
	logging.Info("database exported",
		"run_id", sum.RunID,
		"symbols", sum.Symbols,
		"statements", sum.Statements,
		"proof_steps", sum.ProofSteps,
		"duration_ms", sum.Duration.Milliseconds(),
	)
	return sum, nil
}

// writer holds the prepared inserts of one export.
type writer struct {
	ctx context.Context
	sys *logic.System

	symbol, statement, hyp, dj, step *sql.Stmt
}

func newWriter(ctx context.Context, tx *sql.Tx, sys *logic.System) (*writer, error) {
	w := &writer{ctx: ctx, sys: sys}
	for _, p := range []struct {
		dst   **sql.Stmt
		query string
	}{
		{&w.symbol, `INSERT INTO symbols (id, seq, name, kind, var_type) VALUES (?, ?, ?, ?, ?)`},
		{&w.statement, `INSERT INTO statements (id, seq, label, kind, type_code, formula, chapter, section, section_seq, description, file, line)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`},
		{&w.hyp, `INSERT INTO frame_hyps (stmt_id, optional, pos, hyp_id) VALUES (?, ?, ?, ?)`},
		{&w.dj, `INSERT INTO djvars (stmt_id, optional, lo, hi) VALUES (?, ?, ?, ?)`},
		{&w.step, `INSERT INTO proof_steps (stmt_id, step, ref_id) VALUES (?, ?, ?)`},
	} {
		stmt, err := tx.PrepareContext(ctx, p.query)
		if err != nil {
			w.close()
			return nil, fmt.Errorf("failed to prepare insert: %w", err)
		}
		*p.dst = stmt
	}
	return w, nil
}

func (w *writer) close() {
	for _, s := range []*sql.Stmt{w.symbol, w.statement, w.hyp, w.dj, w.step} {
		if s != nil {
			s.Close()
		}
	}
}

func nullInt(v int, ok bool) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: ok}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (w *writer) writeAll(sum *Summary) error {
	for _, sym := range w.sys.Symbols() {
		if _, err := w.symbol.ExecContext(w.ctx, sym.ID, sym.Seq, sym.Name, sym.Kind.String(), sym.VarType); err != nil {
			return fmt.Errorf("failed to write symbol %q: %w", sym.Name, err)
		}
		sum.Symbols++
	}

	// Frames and proofs may reference any statement, so every row goes in
	// before the first reference.
	stmts := w.sys.Statements()
	for _, st := range stmts {
		b := st.Base()
		grouped := b.Grouped()
		if _, err := w.statement.ExecContext(w.ctx,
			b.ID, b.Seq, b.Label, st.Kind().String(), b.TypeCode, w.sys.FormulaString(b.Formula),
			nullInt(b.Chapter, grouped), nullInt(b.Section, grouped), nullInt(b.SectionSeq, grouped),
			nullString(b.Description), nullString(b.Pos.File), nullInt(b.Pos.Line, b.Pos.Line > 0),
		); err != nil {
			return fmt.Errorf("failed to write statement %q: %w", b.Label, err)
		}
		sum.Statements++
	}

	for _, st := range stmts {
		if err := w.writeRefs(st, sum); err != nil {
			return fmt.Errorf("failed to write statement %q: %w", st.Base().Label, err)
		}
		if err := w.ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) writeRefs(st logic.Stmt, sum *Summary) error {
	id := st.Base().ID
	switch s := st.(type) {
	case *logic.Axiom:
		return w.writeFrame(id, false, &s.Frame, sum)
	case *logic.Theorem:
		if err := w.writeFrame(id, false, &s.Frame, sum); err != nil {
			return err
		}
		if err := w.writeFrame(id, true, &s.OptFrame, sum); err != nil {
			return err
		}
		for i, ref := range s.Proof {
			arg := sql.NullInt64{Int64: int64(ref), Valid: ref != logic.NoStmt}
			if _, err := w.step.ExecContext(w.ctx, id, i, arg); err != nil {
				return err
			}
			sum.ProofSteps++
		}
	}
	return nil
}

func (w *writer) writeFrame(id logic.StmtID, optional bool, f *logic.Frame, sum *Summary) error {
	for i, h := range f.Hyps {
		if _, err := w.hyp.ExecContext(w.ctx, id, optional, i, h); err != nil {
			return err
		}
		sum.FrameHyps++
	}
	for _, d := range f.DjVars {
		if _, err := w.dj.ExecContext(w.ctx, id, optional, d.Lo, d.Hi); err != nil {
			return err
		}
	}
	return nil
}

// ReadMeta returns the meta table of an exported database.
func ReadMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}
