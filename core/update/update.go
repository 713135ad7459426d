// Package update splices new theorems into a database that has already been
// loaded.
//
// Each batch runs under a sequence checkpoint: statements get gap sequence
// numbers next to the statement they are placed after, and a rollback takes
// out every statement the batch inserted and frees its numbers.
package update

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	mmerrors "github.com/FocuswithJustin/mmdb/core/errors"
	"github.com/FocuswithJustin/mmdb/core/logic"
	"github.com/FocuswithJustin/mmdb/core/seq"
	"github.com/FocuswithJustin/mmdb/internal/logging"
	"github.com/FocuswithJustin/mmdb/internal/metrics"
)

// Status is the state of a batch.
type Status string

const (
	StatusOpen       Status = "open"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// Hyp is a new logical hypothesis belonging to a theorem.
type Hyp struct {
	Label    string
	TypeCode string
	Symbols  []string
}

// Theorem describes one theorem to splice in.
type Theorem struct {
	Label    string
	TypeCode string
	Symbols  []string

	// After places the theorem right after this statement. Empty appends it
	// at the end of the database.
	After string

	// VarHyps names existing variable hypotheses for the theorem's frame.
	// When empty, the latest variable hypothesis before the placement is
	// used for each variable.
	VarHyps []string
	// LogHyps are inserted just before the theorem.
	LogHyps []Hyp
	// DjVars lists disjoint variable pairs.
	DjVars [][2]string

	// Proof is an uncompressed proof; "?" marks an unknown step.
	Proof []string
}

// Updater applies batches to a System. It is not safe for concurrent use.
type Updater struct {
	sys     *logic.System
	metrics *metrics.Metrics
	open    *Batch
}

// New returns an Updater for sys. m may be nil.
func New(sys *logic.System, m *metrics.Metrics) *Updater {
	return &Updater{sys: sys, metrics: m}
}

// Batch is an all-or-nothing group of insertions.
type Batch struct {
	ID        string
	Status    Status
	CreatedAt time.Time

	u        *Updater
	ctx      context.Context
	inserted []string
	taken    []int64 // sequence numbers handed out, in order
}

// Begin opens a batch. Only one batch may be open at a time.
func (u *Updater) Begin(ctx context.Context) (*Batch, error) {
	if err := u.sys.Assigner().BeginCheckpoint(); err != nil {
		return nil, err
	}
	b := &Batch{
		ID:        uuid.New().String(),
		Status:    StatusOpen,
		CreatedAt: time.Now().UTC(),
		u:         u,
	}
	b.ctx = logging.WithBatchID(ctx, b.ID)
	u.open = b
	logging.CheckpointEvent(b.ctx, "begin", 0)
	u.metrics.RecordCheckpoint("begin")
	return b, nil
}

// Open returns the open batch, if any.
func (u *Updater) Open() (*Batch, bool) {
	return u.open, u.open != nil
}

// Inserted returns the labels inserted so far, in insertion order.
func (b *Batch) Inserted() []string {
	return slices.Clone(b.inserted)
}

func (b *Batch) checkOpen() error {
	if b.Status != StatusOpen {
		return fmt.Errorf("batch %s is %s: %w", b.ID, b.Status, mmerrors.ErrNoCheckpoint)
	}
	return nil
}

// place returns the sequence number for a statement following after. It
// takes a gap slot when one is available and appends otherwise.
func (b *Batch) place(label string, after int64) (int64, error) {
	if after >= 0 {
		if n := b.u.sys.Assigner().NextInsertSeq(after); n != seq.NoInsert {
			b.taken = append(b.taken, n)
			return n, nil
		}
	}
	n, err := b.u.sys.Assigner().NextSeq()
	if err != nil {
		return 0, err
	}
	b.taken = append(b.taken, n)
	logging.Debug("appending spliced statement", "label", label, "seq", n)
	return n, nil
}

func (b *Batch) insert(st logic.Stmt) error {
	if err := b.u.sys.InsertStatement(st); err != nil {
		return err
	}
	b.inserted = append(b.inserted, st.Base().Label)
	b.u.metrics.RecordStatement(st.Kind().String())
	return nil
}

// Add splices one theorem and its logical hypotheses into the database. On
// error the statements inserted for this theorem are taken out again and
// their sequence numbers released; the batch stays open.
func (b *Batch) Add(t Theorem) (*logic.Theorem, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	mark, seqMark := len(b.inserted), len(b.taken)
	th, err := b.add(t)
	if err != nil {
		b.undo(mark)
		b.release(seqMark)
		return nil, fmt.Errorf("theorem %q: %w", t.Label, err)
	}
	return th, nil
}

func (b *Batch) add(t Theorem) (*logic.Theorem, error) {
	sys := b.u.sys

	after := int64(-1)
	if t.After != "" {
		st, ok := sys.Statement(t.After)
		if !ok {
			return nil, mmerrors.Newf(mmerrors.ErrUndefinedStatement, t.Label, "placement label %q is not defined", t.After)
		}
		after = st.Base().Seq
	}

	var hyps []logic.StmtID
	for _, h := range t.LogHyps {
		n, err := b.place(h.Label, after)
		if err != nil {
			return nil, err
		}
		lh, err := sys.NewLogHypAt(h.Label, h.TypeCode, h.Symbols, n)
		if err != nil {
			return nil, err
		}
		if err := b.insert(lh); err != nil {
			return nil, err
		}
		hyps = append(hyps, lh.ID)
		after = n
	}

	formula, err := sys.ResolveFormula(t.Label, t.TypeCode, t.Symbols)
	if err != nil {
		return nil, err
	}
	n, err := b.place(t.Label, after)
	if err != nil {
		return nil, err
	}

	varHyps, err := b.varHyps(t, formula, hyps, n)
	if err != nil {
		return nil, err
	}
	hyps = append(hyps, varHyps...)

	dj := make([]logic.DjVars, 0, len(t.DjVars))
	for _, pair := range t.DjVars {
		d, err := sys.MakeDjVars(pair[0], pair[1])
		if err != nil {
			return nil, err
		}
		dj = append(dj, d)
	}

	mand, opt := sys.BuildExplicitFrames(formula, hyps, dj)
	th, err := sys.NewTheoremAt(t.Label, t.TypeCode, t.Symbols, n, mand, opt, t.Proof)
	if err != nil {
		return nil, err
	}
	if err := b.insert(th); err != nil {
		return nil, err
	}
	b.u.metrics.RecordProof(metrics.ProofNormal, len(th.Proof))
	logging.LoggerFromContext(b.ctx).Debug("theorem spliced", "label", t.Label, "seq", n, "hyps", len(mand.Hyps))
	return th, nil
}

// varHyps resolves the variable hypotheses of a theorem placed at n.
func (b *Batch) varHyps(t Theorem, formula []logic.SymID, logHyps []logic.StmtID, n int64) ([]logic.StmtID, error) {
	sys := b.u.sys
	if len(t.VarHyps) > 0 {
		out := make([]logic.StmtID, 0, len(t.VarHyps))
		for _, label := range t.VarHyps {
			st, ok := sys.Statement(label)
			if !ok {
				return nil, mmerrors.Newf(mmerrors.ErrUndefinedStatement, t.Label, "variable hypothesis %q is not defined", label)
			}
			if st.Kind() != logic.KindVarHyp {
				return nil, mmerrors.Newf(mmerrors.ErrBadFormula, t.Label, "%q is not a variable hypothesis", label)
			}
			if st.Base().Seq >= n {
				return nil, mmerrors.Newf(mmerrors.ErrForwardReference, t.Label, "variable hypothesis %q follows the theorem", label)
			}
			out = append(out, st.Base().ID)
		}
		return out, nil
	}

	// Latest binding before n for every variable in the formula and the
	// logical hypotheses.
	latest := make(map[logic.SymID]*logic.VarHyp)
	for _, st := range sys.Statements() {
		if st.Base().Seq >= n {
			break
		}
		if vh, ok := st.(*logic.VarHyp); ok {
			latest[vh.Var] = vh
		}
	}

	formulas := [][]logic.SymID{formula}
	for _, id := range logHyps {
		formulas = append(formulas, sys.StatementByID(id).Base().Formula)
	}
	var out []logic.StmtID
	seen := make(map[logic.SymID]bool)
	for _, f := range formulas {
		for _, id := range f {
			if !sys.SymbolByID(id).IsVariable() || seen[id] {
				continue
			}
			seen[id] = true
			vh, ok := latest[id]
			if !ok {
				return nil, mmerrors.Newf(mmerrors.ErrInactiveHypothesis, t.Label,
					"variable %q has no variable hypothesis before the theorem", sys.SymbolByID(id).Name)
			}
			out = append(out, vh.ID)
		}
	}
	return out, nil
}

// undo removes statements inserted after mark, newest first.
func (b *Batch) undo(mark int) {
	for i := len(b.inserted) - 1; i >= mark; i-- {
		if err := b.u.sys.RemoveStatement(b.inserted[i]); err != nil {
			logging.LoggerFromContext(b.ctx).Warn("failed to remove spliced statement", "label", b.inserted[i], "error", err)
		}
	}
	b.inserted = b.inserted[:mark]
}

// release hands back the sequence numbers taken after mark, newest first.
func (b *Batch) release(mark int) {
	a := b.u.sys.Assigner()
	for i := len(b.taken) - 1; i >= mark; i-- {
		if !a.Release(b.taken[i]) {
			logging.LoggerFromContext(b.ctx).Debug("sequence number not released", "seq", b.taken[i])
		}
	}
	b.taken = b.taken[:mark]
}

// Commit makes every insertion permanent.
func (b *Batch) Commit() error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if err := b.u.sys.Assigner().Commit(); err != nil {
		return err
	}
	b.finish(StatusCommitted, "commit")
	return nil
}

// Rollback removes every statement the batch inserted and frees their
// sequence numbers.
func (b *Batch) Rollback() error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	count := len(b.inserted)
	b.undo(0)
	b.taken = nil
	if err := b.u.sys.Assigner().Rollback(); err != nil {
		return err
	}
	b.finish(StatusRolledBack, "rollback", "removed", count)
	return nil
}

func (b *Batch) finish(status Status, event string, args ...any) {
	b.Status = status
	b.u.open = nil
	logging.CheckpointEvent(b.ctx, event, len(b.inserted), args...)
	b.u.metrics.RecordCheckpoint(event)
}

// Apply adds theorems in one batch. The batch is committed when every
// theorem is accepted and rolled back at the first failure.
func (u *Updater) Apply(ctx context.Context, theorems []Theorem) (*Batch, error) {
	b, err := u.Begin(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range theorems {
		if err := ctx.Err(); err != nil {
			return b, rollbackAfter(b, err)
		}
		if _, err := b.Add(t); err != nil {
			return b, rollbackAfter(b, err)
		}
	}
	return b, b.Commit()
}

func rollbackAfter(b *Batch, cause error) error {
	logging.WarnContext(b.ctx, "update batch failed", "error", cause, "inserted", len(b.inserted))
	if err := b.Rollback(); err != nil {
		return fmt.Errorf("%w (rollback failed: %v)", cause, err)
	}
	return cause
}
