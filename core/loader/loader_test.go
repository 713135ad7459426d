package loader

import (
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	mmerrors "github.com/FocuswithJustin/mmdb/core/errors"
	"github.com/FocuswithJustin/mmdb/core/logic"
	"github.com/FocuswithJustin/mmdb/internal/config"
	"github.com/FocuswithJustin/mmdb/internal/metrics"
)

const demoSource = `$( Demo database $)
$c ( ) -> wff |- $.
$v ph ps $.
wph $f wff ph $.
wps $f wff ps $.
$(
#*#*#*#*#*#*#*#*
  Propositional calculus
#*#*#*#*#*#*#*#*
$)
$( Implication is a wff. $)
wi $a wff ( ph -> ps ) $.
$(
=-=-=-=-=-=-=-=-
  Modus ponens
=-=-=-=-=-=-=-=-
$)
${
  min $e |- ph $.
  maj $e |- ( ph -> ps ) $.
  $( Rule of modus ponens. $)
  ax-mp $a |- ps $.
$}
ax-1 $a |- ( ph -> ( ps -> ph ) ) $.
$( A theorem. $)
th1 $p |- ( ph -> ( ps -> ph ) ) $= wph wps ax-1 $.
th2 $p |- ( ph -> ( ps -> ph ) ) $= ( ax-1 ) ABC $.
`

func loadString(t *testing.T, src string, opts Options) *Result {
	t.Helper()
	res, err := LoadString(context.Background(), "demo.mm", src, opts)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	return res
}

func stmt(t *testing.T, sys *logic.System, label string) logic.Stmt {
	t.Helper()
	st, ok := sys.Statement(label)
	if !ok {
		t.Fatalf("statement %s not loaded", label)
	}
	return st
}

func proofLabels(sys *logic.System, steps []logic.StmtID) string {
	out := make([]string, len(steps))
	for i, id := range steps {
		if id == logic.NoStmt {
			out[i] = "?"
			continue
		}
		out[i] = sys.StatementByID(id).Base().Label
	}
	return strings.Join(out, " ")
}

func TestLoadDemo(t *testing.T) {
	res := loadString(t, demoSource, Options{})
	if !res.OK() {
		t.Fatalf("errors: %v", res.Messages.Messages())
	}
	st := res.System.Stats()
	if st.Constants != 5 || st.Variables != 2 {
		t.Errorf("symbols = %d/%d", st.Constants, st.Variables)
	}
	if st.VarHyps != 2 || st.LogHyps != 2 || st.Axioms != 3 || st.Theorems != 2 {
		t.Errorf("stats = %+v", st)
	}

	for _, label := range []string{"th1", "th2"} {
		th := stmt(t, res.System, label).(*logic.Theorem)
		if got := proofLabels(res.System, th.Proof); got != "wph wps ax-1" {
			t.Errorf("%s proof = %q", label, got)
		}
	}
	if res.Stopped || res.Aborted {
		t.Errorf("Stopped/Aborted = %v/%v", res.Stopped, res.Aborted)
	}
	if !strings.Contains(res.String(), "9 statements") {
		t.Errorf("String() = %q", res.String())
	}
}

func TestLoadGrouping(t *testing.T) {
	res := loadString(t, demoSource, Options{})

	if len(res.Headings) != 2 {
		t.Fatalf("Headings = %+v", res.Headings)
	}
	if h := res.Headings[0]; h.Kind != ChapterHeading || h.Chapter != 1 || h.Title != "Propositional calculus" {
		t.Errorf("chapter heading = %+v", h)
	}
	if h := res.Headings[1]; h.Kind != SectionHeading || h.Chapter != 1 || h.Section != 1 || h.Title != "Modus ponens" {
		t.Errorf("section heading = %+v", h)
	}

	tests := []struct {
		label                        string
		chapter, section, sectionSeq int
		desc                         string
	}{
		{"wph", 0, 0, 1, ""},
		{"wps", 0, 0, 2, ""},
		{"wi", 1, 0, 1, "Implication is a wff."},
		{"min", 1, 1, 1, ""},
		{"ax-mp", 1, 1, 3, "Rule of modus ponens."},
		{"ax-1", 1, 1, 4, ""},
		{"th1", 1, 1, 5, "A theorem."},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			b := stmt(t, res.System, tt.label).Base()
			if !b.Grouped() {
				t.Fatal("grouping not set")
			}
			if b.Chapter != tt.chapter || b.Section != tt.section || b.SectionSeq != tt.sectionSeq {
				t.Errorf("grouping = %d/%d/%d, want %d/%d/%d",
					b.Chapter, b.Section, b.SectionSeq, tt.chapter, tt.section, tt.sectionSeq)
			}
			if b.Description != tt.desc {
				t.Errorf("Description = %q, want %q", b.Description, tt.desc)
			}
		})
	}

	th1 := stmt(t, res.System, "th1").Base()
	if th1.Pos.File != "demo.mm" || th1.Pos.Line != 26 {
		t.Errorf("th1 position = %s", th1.Pos)
	}
	wff, _ := res.System.Symbol("wff")
	if wff.Pos.Line != 2 {
		t.Errorf("wff position = %s", wff.Pos)
	}
}

const badSource = `$c wff |- $.
$v ph $.
wph $f wff ph $.
dup $a |- ph $.
dup $a |- ph $.
bad $a |- ps $.
wff $a |- ph $.
ok $a |- ph $.
`

func TestLoadAccumulatesErrors(t *testing.T) {
	res := loadString(t, badSource, Options{})

	if got := res.Messages.ErrorCount(); got != 3 {
		t.Fatalf("ErrorCount() = %d, want 3: %v", got, res.Messages.Messages())
	}
	kinds := []error{mmerrors.ErrDuplicateLabel, mmerrors.ErrUndefinedSymbol, mmerrors.ErrDuplicateLabel}
	for i, kind := range kinds {
		if !errors.Is(res.Errors[i], kind) {
			t.Errorf("Errors[%d] = %v, want %v", i, res.Errors[i], kind)
		}
	}
	var ke *mmerrors.KernelError
	if !errors.As(res.Errors[1], &ke) || ke.Pos.Line != 6 || ke.Label != "bad" {
		t.Errorf("Errors[1] = %#v", res.Errors[1])
	}
	if msg := res.Messages.Messages()[0].String(); !strings.HasPrefix(msg, "demo.mm:5:1: error: ") {
		t.Errorf("message = %q", msg)
	}
	if _, ok := res.System.Statement("ok"); !ok {
		t.Error("load stopped at the first error")
	}
	if _, ok := res.System.Statement("bad"); ok {
		t.Error("rejected statement inserted")
	}
}

func TestLoadMaxErrors(t *testing.T) {
	res := loadString(t, badSource, Options{MaxErrors: 2})
	if !res.Aborted {
		t.Error("Aborted = false")
	}
	if got := res.Messages.ErrorCount(); got != 2 {
		t.Errorf("ErrorCount() = %d, want 2", got)
	}
	if _, ok := res.System.Statement("ok"); ok {
		t.Error("load continued past the error limit")
	}
}

func TestLoadStopAfter(t *testing.T) {
	res := loadString(t, demoSource, Options{StopAfter: "ax-mp"})
	if !res.OK() {
		t.Fatalf("errors: %v", res.Messages.Messages())
	}
	if !res.Stopped {
		t.Error("Stopped = false")
	}
	if res.System.ScopeDepth() != 0 {
		t.Errorf("ScopeDepth() = %d after early stop", res.System.ScopeDepth())
	}
	stmt(t, res.System, "ax-mp")
	if _, ok := res.System.Statement("ax-1"); ok {
		t.Error("statement after the stop label was loaded")
	}
}

func TestLoadSkipProofs(t *testing.T) {
	res := loadString(t, demoSource, Options{SkipProofs: true})
	th := stmt(t, res.System, "th2").(*logic.Theorem)
	if len(th.Proof) != 1 || th.Proof[0] != logic.NoStmt {
		t.Errorf("Proof = %v", th.Proof)
	}
}

func TestLoadStatementErrors(t *testing.T) {
	const header = "$c wff |- $.\n$v ph ps $.\nwph $f wff ph $.\n"
	tests := []struct {
		name string
		body string
		kind error
	}{
		{"open scope at end", "${\n", mmerrors.ErrScope},
		{"unmatched scope end", "$}\n", mmerrors.ErrScope},
		{"var hyp arity", "wps $f wff ps ph $.\n", mmerrors.ErrBadFormula},
		{"missing type code", "e1 $e $.\n", mmerrors.ErrBadFormula},
		{"proof on axiom", "a1 $a |- ph $= wph $.\n", mmerrors.ErrMalformedProof},
		{"theorem without proof", "t1 $p |- ph $.\n", mmerrors.ErrMalformedProof},
		{"empty proof", "t1 $p |- ph $= $.\n", mmerrors.ErrEmptyProof},
		{"unterminated label list", "t1 $p |- ph $= ( wph A $.\n", mmerrors.ErrMalformedProof},
		{"compressed index range", "t1 $p |- ph $= ( ) AB $.\n", mmerrors.ErrIndexRange},
		{"compressed bad character", "t1 $p |- ph $= ( ) A* $.\n", mmerrors.ErrInvalidCharacter},
		{"forward proof reference", "t1 $p |- ph $= t2 $.\nt2 $a |- ph $.\n", mmerrors.ErrUndefinedStatement},
		{"proof cites itself", "t1 $p |- ph $= t1 $.\n", mmerrors.ErrForwardReference},
		{"bad label", "a@b $a |- ph $.\n", mmerrors.ErrBadFormula},
		{"constant in scope", "${ $c x $. $}\n", mmerrors.ErrScope},
		{"disjoint with itself", "$d ph ph $.\n", mmerrors.ErrBadFormula},
		{"empty declaration", "$v $.\n", mmerrors.ErrBadFormula},
		{"include in scope", "${ $[ other.mm $] $}\n", mmerrors.ErrScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := loadString(t, header+tt.body, Options{})
			if res.OK() {
				t.Fatal("load reported no errors")
			}
			if !errors.Is(res.Errors[0], tt.kind) {
				t.Errorf("Errors[0] = %v, want %v", res.Errors[0], tt.kind)
			}
		})
	}
}

func TestLoadDisjointPairs(t *testing.T) {
	src := "$c wff $.\n$v x y z $.\n$d x y z $.\n"
	res := loadString(t, src, Options{})
	if !res.OK() {
		t.Fatalf("errors: %v", res.Messages.Messages())
	}
	global, _ := res.System.Scope(0)
	if len(global.DjVars) != 3 {
		t.Errorf("DjVars = %+v, want 3 pairs", global.DjVars)
	}
}

func TestLoadParseError(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown keyword", "$c wff $.\n$q\n"},
		{"unterminated statement", "$c wff\n"},
		{"unterminated comment", "$( never closed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := LoadString(context.Background(), "bad.mm", tt.src, Options{})
			var perr *mmerrors.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if !errors.Is(err, mmerrors.ErrInvalidInput) {
				t.Error("parse error does not match ErrInvalidInput")
			}
			if !res.Aborted || res.OK() {
				t.Error("result not marked as failed")
			}
		})
	}
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := LoadString(ctx, "demo.mm", demoSource, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if !res.Aborted {
		t.Error("Aborted = false")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFileWithInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "base.mm"), "$c wff |- $.\n$v ph $.\nwph $f wff ph $.\n")

	main := filepath.Join(dir, "main.mm.gz")
	f, err := os.Create(main)
	if err != nil {
		t.Fatal(err)
	}
	gw := gzip.NewWriter(f)
	src := "$[ base.mm $]\n$[ base.mm $]\nax $a |- ph $.\n"
	if _, err := gw.Write([]byte(src)); err != nil {
		t.Fatal(err)
	}
	gw.Close()
	f.Close()

	m := metrics.New()
	res, err := Load(context.Background(), main, Options{Metrics: m})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !res.OK() {
		t.Fatalf("errors: %v", res.Messages.Messages())
	}
	if len(res.Files) != 2 {
		t.Errorf("Files = %v, want main and base once each", res.Files)
	}
	stmt(t, res.System, "ax")

	if got := testutil.ToFloat64(m.StatementsTotal.WithLabelValues("$a")); got != 1 {
		t.Errorf("statements_total{$a} = %v", got)
	}
	if got := testutil.ToFloat64(m.SymbolsTotal.WithLabelValues("constant")); got != 2 {
		t.Errorf("symbols_total{constant} = %v", got)
	}
}

func TestLoadIncludeTraversal(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.mm")
	writeFile(t, main, "$[ ../outside.mm $]\n")

	res, err := Load(context.Background(), main, Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if res.OK() || !errors.Is(res.Errors[0], mmerrors.ErrInvalidInput) {
		t.Errorf("Errors = %v", res.Errors)
	}
}

func TestLoadMissingFile(t *testing.T) {
	res, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.mm"), Options{})
	var ioErr *mmerrors.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("error = %v, want *IOError", err)
	}
	if !res.Aborted {
		t.Error("Aborted = false")
	}
}

func TestLoadMetricsCountErrors(t *testing.T) {
	m := metrics.New()
	loadString(t, badSource, Options{Metrics: m})
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("structural")); got != 2 {
		t.Errorf("errors_total{structural} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("reference")); got != 1 {
		t.Errorf("errors_total{reference} = %v, want 1", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Load.Proofs = config.ProofsSkip
	cfg.Load.PrematureEOFLabel = "ax-1"
	opts := OptionsFromConfig(cfg)
	if !opts.SkipProofs || opts.StopAfter != "ax-1" || opts.MaxErrors != cfg.Load.MaxErrors {
		t.Errorf("Options = %+v", opts)
	}
}

func TestParseHeading(t *testing.T) {
	tests := []struct {
		body  string
		kind  HeadingKind
		title string
		ok    bool
	}{
		{"####\n  Part one\n####", ChapterHeading, "Part one", true},
		{"#*#*#*\n\n  Chapter\n#*#*#*", ChapterHeading, "Chapter", true},
		{"=-=-=-\n  Section A\n=-=-=-", SectionHeading, "Section A", true},
		{"Just a comment", 0, "", false},
		{"=-=-", SectionHeading, "", true},
	}
	for _, tt := range tests {
		kind, title, ok := parseHeading(tt.body)
		if kind != tt.kind || title != tt.title || ok != tt.ok {
			t.Errorf("parseHeading(%q) = %v %q %v", tt.body, kind, title, ok)
		}
	}
}
