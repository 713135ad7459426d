// Command mmdb loads Metamath databases into the logic kernel and inspects,
// fingerprints, updates or exports them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/mmdb/core/digest"
	"github.com/FocuswithJustin/mmdb/core/export"
	"github.com/FocuswithJustin/mmdb/core/loader"
	"github.com/FocuswithJustin/mmdb/core/proof"
	"github.com/FocuswithJustin/mmdb/core/sqlite"
	"github.com/FocuswithJustin/mmdb/core/update"
	"github.com/FocuswithJustin/mmdb/internal/config"
	"github.com/FocuswithJustin/mmdb/internal/logging"
	"github.com/FocuswithJustin/mmdb/internal/metrics"
	"github.com/FocuswithJustin/mmdb/internal/validation"
)

const version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	Config    string `name:"config" short:"c" help:"YAML configuration file" type:"path"`
	LogLevel  string `name:"log-level" help:"Override the configured log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Override the configured log format (text, json)"`
}

// CLI defines the command-line interface for mmdb.
type CLI struct {
	Globals

	Load        LoadCmd        `cmd:"" help:"Load a database and report diagnostics"`
	Stats       StatsCmd       `cmd:"" help:"Print statement counts and load metrics"`
	Fingerprint FingerprintCmd `cmd:"" help:"Print the BLAKE3 and SHA-256 fingerprint of a database"`
	Export      ExportCmd      `cmd:"" help:"Write a database into SQLite tables"`
	Splice      SpliceCmd      `cmd:"" help:"Splice theorems from a YAML batch into a database"`
	Decode      DecodeCmd      `cmd:"" help:"Decode compressed proof numerals"`
	Encode      EncodeCmd      `cmd:"" help:"Encode proof indices as compressed numerals"`
	Version     VersionCmd     `cmd:"" help:"Print version information"`
}

// LoadFlags select and tune the database load.
type LoadFlags struct {
	Path         string `arg:"" help:"Database file (.mm, .mm.gz or .mm.xz)" type:"existingfile"`
	IntervalSize int    `name:"interval-size" help:"Sequence interval size"`
	MaxErrors    int    `name:"max-errors" help:"Stop after this many errors (negative for no limit)"`
	StopAfter    string `name:"stop-after" help:"Stop loading after the statement with this label"`
	SkipProofs   bool   `name:"skip-proofs" help:"Do not decode or check proofs"`
}

// config merges the configuration file, environment and flags.
func (g *Globals) config(f *LoadFlags) (config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return cfg, err
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	if f != nil {
		if f.IntervalSize != 0 {
			cfg.Seq.IntervalSize = f.IntervalSize
		}
		if f.MaxErrors != 0 {
			cfg.Load.MaxErrors = f.MaxErrors
		}
		if f.StopAfter != "" {
			cfg.Load.PrematureEOFLabel = f.StopAfter
		}
		if f.SkipProofs {
			cfg.Load.Proofs = config.ProofsSkip
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.InitLogging()
	return cfg, nil
}

// load reads the database named by f with the merged configuration.
func (g *Globals) load(ctx context.Context, f *LoadFlags, m *metrics.Metrics) (*loader.Result, error) {
	if err := validation.ValidatePath(f.Path); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}
	cfg, err := g.config(f)
	if err != nil {
		return nil, err
	}
	opts := loader.OptionsFromConfig(cfg)
	opts.Metrics = m
	return loader.Load(ctx, f.Path, opts)
}

// loadOK loads f, prints the collected diagnostics to w and fails unless
// the load was clean.
func (g *Globals) loadOK(ctx context.Context, f *LoadFlags, m *metrics.Metrics, w io.Writer) (*loader.Result, error) {
	res, err := g.load(ctx, f, m)
	if res != nil {
		printMessages(w, res)
	}
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("load failed with %d error(s)", res.Messages.ErrorCount())
	}
	return res, nil
}

func printMessages(w io.Writer, res *loader.Result) {
	for _, msg := range res.Messages.Messages() {
		fmt.Fprintln(w, msg)
	}
}

// LoadCmd loads a database and prints diagnostics.
type LoadCmd struct {
	LoadFlags `embed:""`
}

func (c *LoadCmd) Run(g *Globals, ctx context.Context, kctx *kong.Context) error {
	res, err := g.load(ctx, &c.LoadFlags, nil)
	if res != nil {
		printMessages(kctx.Stdout, res)
	}
	if err != nil {
		return err
	}
	status := "ok"
	switch {
	case res.Aborted:
		status = "aborted"
	case res.Stopped:
		status = "stopped"
	}
	fmt.Fprintf(kctx.Stdout, "%s: %s (%s)\n", c.Path, res, status)
	if !res.OK() {
		return fmt.Errorf("load failed with %d error(s)", res.Messages.ErrorCount())
	}
	return nil
}

// StatsCmd prints per-kind counts.
type StatsCmd struct {
	LoadFlags `embed:""`
	JSON      bool `name:"json" help:"Print JSON"`
	Metrics   bool `name:"metrics" help:"Also print load metrics in Prometheus text format"`
}

func (c *StatsCmd) Run(g *Globals, ctx context.Context, kctx *kong.Context) error {
	m := metrics.New()
	res, err := g.loadOK(ctx, &c.LoadFlags, m, kctx.Stdout)
	if err != nil {
		return err
	}
	st := res.System.Stats()

	if c.JSON {
		enc := json.NewEncoder(kctx.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(st); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(kctx.Stdout, 0, 0, 2, ' ', 0)
		for _, row := range []struct {
			name  string
			value int64
		}{
			{"constants", int64(st.Constants)},
			{"variables", int64(st.Variables)},
			{"variable hypotheses", int64(st.VarHyps)},
			{"logical hypotheses", int64(st.LogHyps)},
			{"axioms", int64(st.Axioms)},
			{"theorems", int64(st.Theorems)},
			{"headings", int64(len(res.Headings))},
			{"sequence numbers", st.ObjectCount},
			{"intervals", st.IntervalsUsed},
		} {
			fmt.Fprintf(tw, "%s\t%d\n", row.name, row.value)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if c.Metrics {
		return m.WriteText(kctx.Stdout)
	}
	return nil
}

// FingerprintCmd prints the database fingerprint.
type FingerprintCmd struct {
	LoadFlags `embed:""`
	Canonical bool `name:"canonical" help:"Print the canonical text that is hashed instead"`
}

func (c *FingerprintCmd) Run(g *Globals, ctx context.Context, kctx *kong.Context) error {
	res, err := g.loadOK(ctx, &c.LoadFlags, nil, kctx.Stdout)
	if err != nil {
		return err
	}
	if c.Canonical {
		return digest.Canonical(kctx.Stdout, res.System)
	}
	fp, err := digest.Compute(res.System)
	if err != nil {
		return err
	}
	fmt.Fprintf(kctx.Stdout, "blake3  %s\nsha256  %s\n", fp.BLAKE3, fp.SHA256)
	return nil
}

// ExportCmd writes a database into SQLite.
type ExportCmd struct {
	LoadFlags `embed:""`
	Out       string `name:"out" short:"o" required:"" help:"SQLite file to create" type:"path"`
}

func (c *ExportCmd) Run(g *Globals, ctx context.Context, kctx *kong.Context) error {
	if err := validation.ValidatePath(c.Out); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	if _, err := os.Stat(c.Out); err == nil {
		return fmt.Errorf("output %s already exists", c.Out)
	}
	res, err := g.loadOK(ctx, &c.LoadFlags, nil, kctx.Stdout)
	if err != nil {
		return err
	}
	sum, err := export.ToFile(ctx, res.System, c.Out, export.Options{Source: c.Path})
	if err != nil {
		os.Remove(c.Out)
		return err
	}
	fmt.Fprintf(kctx.Stdout, "exported %d symbols, %d statements, %d proof steps to %s (run %s)\n",
		sum.Symbols, sum.Statements, sum.ProofSteps, c.Out, sum.RunID)
	return nil
}

// SpliceCmd applies a YAML batch to a loaded database.
type SpliceCmd struct {
	LoadFlags `embed:""`
	Batch     string `name:"batch" short:"b" required:"" help:"YAML batch file" type:"existingfile"`
	Out       string `name:"out" short:"o" help:"Also export the updated database to this SQLite file" type:"path"`
}

func (c *SpliceCmd) Run(g *Globals, ctx context.Context, kctx *kong.Context) error {
	f, err := os.Open(c.Batch)
	if err != nil {
		return fmt.Errorf("failed to open batch: %w", err)
	}
	theorems, err := update.ReadBatch(f)
	f.Close()
	if err != nil {
		return err
	}

	m := metrics.New()
	res, err := g.loadOK(ctx, &c.LoadFlags, m, kctx.Stdout)
	if err != nil {
		return err
	}
	b, err := update.New(res.System, m).Apply(ctx, theorems)
	if err != nil {
		return err
	}
	fp, err := digest.Compute(res.System)
	if err != nil {
		return err
	}
	fmt.Fprintf(kctx.Stdout, "batch %s: spliced %s\nblake3  %s\n", b.ID, strings.Join(b.Inserted(), " "), fp.BLAKE3)

	if c.Out != "" {
		sum, err := export.ToFile(ctx, res.System, c.Out, export.Options{Source: c.Path})
		if err != nil {
			return err
		}
		fmt.Fprintf(kctx.Stdout, "exported %d statements to %s\n", sum.Statements, c.Out)
	}
	return nil
}

// DecodeCmd decodes compressed proof numerals.
type DecodeCmd struct {
	Blocks []string `arg:"" help:"Compressed proof blocks"`
}

func (c *DecodeCmd) Run(kctx *kong.Context) error {
	steps, err := proof.Decode(c.Blocks...)
	tw := tabwriter.NewWriter(kctx.Stdout, 0, 0, 2, ' ', 0)
	for _, s := range steps {
		switch {
		case s.Repeat:
			fmt.Fprintf(tw, "%d\trepeat\t%d\n", s.Offset, s.Index)
		case s.Unknown():
			fmt.Fprintf(tw, "%d\tunknown\t\n", s.Offset)
		default:
			fmt.Fprintf(tw, "%d\tindex\t%d\n", s.Offset, s.Index)
		}
	}
	if ferr := tw.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

// EncodeCmd encodes indices as compressed numerals.
type EncodeCmd struct {
	Indices []string `arg:"" help:"1-based indices; 0 is an unknown step, a z suffix tags the step for reuse"`
	Width   int      `name:"width" help:"Wrap output into blocks of this many characters" default:"0"`
}

func (c *EncodeCmd) Run(kctx *kong.Context) error {
	var steps []proof.Step
	for _, arg := range c.Indices {
		repeat := strings.HasSuffix(arg, "z")
		n, err := strconv.Atoi(strings.TrimSuffix(arg, "z"))
		if err != nil || n < 0 {
			return fmt.Errorf("invalid index %q", arg)
		}
		if repeat && n == 0 {
			return fmt.Errorf("invalid index %q: an unknown step cannot be tagged", arg)
		}
		steps = append(steps, proof.Step{Index: n})
		if repeat {
			steps = append(steps, proof.Step{Index: n, Repeat: true})
		}
	}
	for _, block := range proof.Split(proof.Encode(steps), c.Width) {
		fmt.Fprintln(kctx.Stdout, block)
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(kctx *kong.Context) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(kctx.Stdout, "mmdb version %s (sqlite driver %s, %s)\n", version, info.Package, info.DriverType)
	return nil
}

func newParser(cli *CLI, ctx context.Context, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("mmdb"),
		kong.Description("Metamath database kernel: load, verify structure, fingerprint and export"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Bind(&cli.Globals),
		kong.BindTo(ctx, (*context.Context)(nil)),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var cli CLI
	parser, err := newParser(&cli, ctx)
	if err != nil {
		logging.Error("failed to build command line", "error", err)
		os.Exit(1)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	err = kctx.Run()
	kctx.FatalIfErrorf(err)
}
