// Package loader reads Metamath source files into a logic.System.
//
// The loader parses a file with a participle grammar and replays every
// declaration against the kernel in source order. A rejected declaration is
// recorded and loading continues, so one pass reports many problems; the
// load stops early once the configured error limit is reached.
//
// Sources may be plain, gzip or xz compressed (see internal/archive), and may
// include other files with $[ file $] at the top level.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	mmerrors "github.com/FocuswithJustin/mmdb/core/errors"
	"github.com/FocuswithJustin/mmdb/core/logic"
	"github.com/FocuswithJustin/mmdb/internal/archive"
	"github.com/FocuswithJustin/mmdb/internal/config"
	"github.com/FocuswithJustin/mmdb/internal/logging"
	"github.com/FocuswithJustin/mmdb/internal/metrics"
	"github.com/FocuswithJustin/mmdb/internal/validation"
)

const (
	// maxIncludeDepth bounds nested file inclusion.
	maxIncludeDepth = 16
	// ctxCheckInterval is how many items are applied between context checks.
	ctxCheckInterval = 1024
)

// Options configures a load.
type Options struct {
	// IntervalSize is the sequence interval size (0 = default).
	IntervalSize int
	// MaxErrors stops the load after this many errors (0 = default,
	// negative = no limit).
	MaxErrors int
	// StopAfter ends the load right after the statement with this label,
	// closing any open scopes.
	StopAfter string
	// SkipProofs replaces every proof with a single unknown step.
	SkipProofs bool
	// Metrics receives load counters. May be nil.
	Metrics *metrics.Metrics
}

// OptionsFromConfig builds Options from a configuration.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		IntervalSize: cfg.Seq.IntervalSize,
		MaxErrors:    cfg.Load.MaxErrors,
		StopAfter:    cfg.Load.PrematureEOFLabel,
		SkipProofs:   cfg.Load.Proofs == config.ProofsSkip,
	}
}

// Result is the outcome of a load.
type Result struct {
	System   *logic.System
	Messages *logging.Collector
	// Errors holds every recorded error with its source position.
	Errors   []error
	Headings []Heading
	Files    []string
	// Stopped is set when the load ended at Options.StopAfter.
	Stopped bool
	// Aborted is set when the error limit or a fatal error ended the load.
	Aborted  bool
	Duration time.Duration
}

// OK reports whether the load recorded no errors.
func (r *Result) OK() bool { return r.Messages.ErrorCount() == 0 }

// Loader applies Metamath source to a System. It is not safe for concurrent use.
type Loader struct {
	opts  Options
	sys   *logic.System
	msgs  *logging.Collector
	group grouping

	errs     []error
	files    []string
	included map[string]bool
	depth    int

	pendingDesc string
	stopped     bool
	aborted     bool
	start       time.Time
}

// New creates a Loader with an empty System.
func New(opts Options) (*Loader, error) {
	sys, err := logic.New(logic.Config{IntervalSize: opts.IntervalSize})
	if err != nil {
		return nil, err
	}
	return &Loader{
		opts:     opts,
		sys:      sys,
		msgs:     logging.NewCollector(opts.MaxErrors),
		included: make(map[string]bool),
		start:    time.Now(),
	}, nil
}

// System returns the System being built.
func (l *Loader) System() *logic.System { return l.sys }

func (l *Loader) done() bool { return l.stopped || l.aborted }

// LoadFile reads and applies the file at path. A file already loaded by this
// Loader is skipped.
func (l *Loader) LoadFile(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return mmerrors.NewIO("resolve", path, err)
	}
	if l.included[abs] {
		return nil
	}
	l.included[abs] = true

	r, err := archive.Open(path)
	if err != nil {
		l.aborted = true
		l.msgs.AddError(path, err.Error())
		return mmerrors.NewIO("open", path, err)
	}
	defer r.Close()
	return l.load(ctx, path, filepath.Dir(path), r)
}

// LoadReader reads and applies source from r. Inclusions resolve against
// the working directory.
func (l *Loader) LoadReader(ctx context.Context, name string, r io.Reader) error {
	return l.load(ctx, name, ".", r)
}

func (l *Loader) load(ctx context.Context, name, dir string, r io.Reader) error {
	l.files = append(l.files, name)
	src, err := mmParser.Parse(name, r)
	if err != nil {
		perr := parseError(err)
		l.aborted = true
		l.msgs.AddError(perr.Pos.String(), perr.Message)
		l.errs = append(l.errs, perr)
		return perr
	}

	for i, it := range src.Items {
		if l.done() {
			return nil
		}
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				l.aborted = true
				return err
			}
		}
		if err := l.apply(ctx, dir, it); err != nil {
			l.aborted = true
			return err
		}
	}
	return nil
}

// Finish closes the load: open scopes are an error unless the load stopped
// early. The Loader must not be used afterwards.
func (l *Loader) Finish() *Result {
	if l.aborted {
		_ = l.sys.FinalizeEOF(true)
	} else {
		_ = l.report(mmerrors.Position{}, "", "", l.sys.FinalizeEOF(l.stopped))
	}

	res := &Result{
		System:   l.sys,
		Messages: l.msgs,
		Errors:   l.errs,
		Headings: l.group.headings,
		Files:    l.files,
		Stopped:  l.stopped,
		Aborted:  l.aborted,
		Duration: time.Since(l.start),
	}
	l.opts.Metrics.ObserveLoad(res.Duration)
	logging.LoadSummary(strings.Join(l.files, ","), l.sys.Stats().Statements(), l.msgs.ErrorCount(), res.Duration)
	return res
}

// Load reads the file at path into a new System.
func Load(ctx context.Context, path string, opts Options) (*Result, error) {
	l, err := New(opts)
	if err != nil {
		return nil, err
	}
	err = l.LoadFile(ctx, path)
	return l.Finish(), err
}

// LoadString reads source held in memory into a new System.
func LoadString(ctx context.Context, name, src string, opts Options) (*Result, error) {
	l, err := New(opts)
	if err != nil {
		return nil, err
	}
	err = l.LoadReader(ctx, name, strings.NewReader(src))
	return l.Finish(), err
}

func position(p lexer.Position) mmerrors.Position {
	return mmerrors.Position{File: p.Filename, Line: p.Line, Column: p.Column}
}

func parseError(err error) *mmerrors.ParseError {
	var perr participle.Error
	if errors.As(err, &perr) {
		return mmerrors.NewParse(position(perr.Position()), perr.Message())
	}
	return mmerrors.NewParse(mmerrors.Position{}, err.Error())
}

// className names an error's class for metrics.
func className(err error) string {
	if class := mmerrors.ClassOf(err); class != nil {
		return strings.TrimSuffix(class.Error(), " error")
	}
	return "other"
}

// report records a rejected declaration. It returns err only when the load
// cannot continue.
func (l *Loader) report(pos mmerrors.Position, label, keyword string, err error) error {
	if err == nil {
		return nil
	}
	l.msgs.AddError(pos.String(), err.Error())
	err = mmerrors.At(err, pos)
	l.errs = append(l.errs, err)
	logging.StatementRejected(label, keyword, pos.String(), err)
	l.opts.Metrics.RecordError(className(err))
	if l.msgs.MaxErrorsReached() {
		l.aborted = true
	}
	if mmerrors.IsFatal(err) {
		return err
	}
	return nil
}

func (l *Loader) apply(ctx context.Context, dir string, it *item) error {
	pos := position(it.Pos)

	if it.Comment != nil {
		body := commentBody(*it.Comment)
		if kind, title, ok := parseHeading(body); ok {
			l.group.heading(kind, title, pos)
			l.pendingDesc = ""
			return nil
		}
		l.pendingDesc = body
		return nil
	}

	desc := l.pendingDesc
	l.pendingDesc = ""

	switch {
	case it.Include != nil:
		return l.include(ctx, dir, *it.Include, pos)
	case it.Block == "${":
		l.sys.BeginScope()
	case it.Block == "$}":
		return l.report(pos, "", it.Block, l.sys.EndScope())
	case it.Decl != nil:
		return l.declare(it.Decl, pos)
	case it.Stmt != nil:
		return l.statement(it.Stmt, desc, pos)
	}
	return nil
}

func (l *Loader) include(ctx context.Context, dir, tok string, pos mmerrors.Position) error {
	name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(tok, "$["), "$]"))
	if l.sys.ScopeDepth() != 0 {
		return l.report(pos, name, "$[", mmerrors.New(mmerrors.ErrScope, name, "file inclusion inside a scope"))
	}
	if l.depth >= maxIncludeDepth {
		return l.report(pos, name, "$[", mmerrors.Newf(mmerrors.ErrScope, name, "inclusion nested deeper than %d", maxIncludeDepth))
	}
	rel, err := validation.SanitizePath(dir, name)
	if err != nil {
		return l.report(pos, name, "$[", &mmerrors.KernelError{Kind: mmerrors.ErrInvalidInput, Label: name, Err: err})
	}

	l.depth++
	defer func() { l.depth-- }()
	return l.LoadFile(ctx, filepath.Join(dir, rel))
}

func symbolError(sym string, err error) error {
	return &mmerrors.KernelError{Kind: mmerrors.ErrBadFormula, Label: sym, Err: err}
}

func (l *Loader) declare(d *declaration, pos mmerrors.Position) error {
	if len(d.Symbols) == 0 {
		return l.report(pos, "", d.Keyword, mmerrors.Newf(mmerrors.ErrBadFormula, "", "empty %s statement", d.Keyword))
	}
	for _, name := range d.Symbols {
		if err := validation.ValidMathSymbol(name); err != nil {
			return l.report(pos, name, d.Keyword, symbolError(name, err))
		}
	}

	switch d.Keyword {
	case "$c", "$v":
		for _, name := range d.Symbols {
			var sym *logic.Symbol
			var err error
			if d.Keyword == "$c" {
				sym, err = l.sys.AddConstant(name)
			} else {
				sym, err = l.sys.AddVariable(name)
			}
			if err != nil {
				if ferr := l.report(pos, name, d.Keyword, err); ferr != nil || l.done() {
					return ferr
				}
				continue
			}
			if sym.Pos.IsZero() {
				sym.Pos = pos
			}
			l.opts.Metrics.RecordSymbol(sym.Kind.String())
		}

	case "$d":
		for i := 0; i < len(d.Symbols); i++ {
			for j := i + 1; j < len(d.Symbols); j++ {
				if _, err := l.sys.AddDjVars(d.Symbols[i], d.Symbols[j]); err != nil {
					if ferr := l.report(pos, d.Symbols[i], d.Keyword, err); ferr != nil || l.done() {
						return ferr
					}
				}
			}
		}
	}
	return nil
}

func (l *Loader) statement(st *statement, desc string, pos mmerrors.Position) error {
	if st.Label == l.opts.StopAfter && l.opts.StopAfter != "" {
		defer func() { l.stopped = true }()
	}

	stmt, err := l.addStatement(st)
	if err != nil {
		return l.report(pos, st.Label, st.Keyword, err)
	}

	b := stmt.Base()
	b.SetGrouping(l.group.next())
	b.Description = desc
	b.Pos = pos
	l.opts.Metrics.RecordStatement(stmt.Kind().String())
	return nil
}

func (l *Loader) addStatement(st *statement) (logic.Stmt, error) {
	if err := validation.ValidLabel(st.Label); err != nil {
		return nil, symbolError(st.Label, err)
	}
	for _, name := range st.Symbols {
		if err := validation.ValidMathSymbol(name); err != nil {
			return nil, symbolError(name, err)
		}
	}
	if st.Keyword != "$p" && len(st.Proof) > 0 {
		return nil, mmerrors.Newf(mmerrors.ErrMalformedProof, st.Label, "%s statement cannot carry a proof", st.Keyword)
	}
	if len(st.Symbols) == 0 {
		return nil, mmerrors.New(mmerrors.ErrBadFormula, st.Label, "missing type code")
	}
	typ, syms := st.Symbols[0], st.Symbols[1:]

	switch st.Keyword {
	case "$f":
		if len(syms) != 1 {
			return nil, mmerrors.New(mmerrors.ErrBadFormula, st.Label, "$f needs a type code and exactly one variable")
		}
		return l.sys.AddVarHyp(st.Label, typ, syms[0])
	case "$e":
		return l.sys.AddLogHyp(st.Label, typ, syms)
	case "$a":
		return l.sys.AddAxiom(st.Label, typ, syms)
	default:
		return l.theorem(st.Label, typ, syms, st.Proof)
	}
}

func (l *Loader) theorem(label, typ string, syms, proof []string) (*logic.Theorem, error) {
	if len(proof) == 0 {
		return nil, mmerrors.New(mmerrors.ErrMalformedProof, label, "missing $= proof")
	}
	words := proof[1:]
	if l.opts.SkipProofs {
		words = []string{logic.UnknownStep}
	}

	if len(words) > 0 && words[0] == "(" {
		end := slices.Index(words, ")")
		if end < 0 {
			return nil, mmerrors.New(mmerrors.ErrMalformedProof, label, "unterminated compressed proof label list")
		}
		th, err := l.sys.AddTheoremCompressed(label, typ, syms, words[1:end], words[end+1:])
		if err != nil {
			return nil, err
		}
		l.opts.Metrics.RecordProof(metrics.ProofCompressed, len(th.Proof))
		return th, nil
	}

	th, err := l.sys.AddTheorem(label, typ, syms, words)
	if err != nil {
		return nil, err
	}
	l.opts.Metrics.RecordProof(metrics.ProofNormal, len(th.Proof))
	return th, nil
}

// String summarizes a result for logs and the CLI.
func (r *Result) String() string {
	st := r.System.Stats()
	return fmt.Sprintf("%d statements, %d symbols, %d errors", st.Statements(), st.Constants+st.Variables, r.Messages.ErrorCount())
}
