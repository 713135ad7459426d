package digest

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/mmdb/core/loader"
	"github.com/FocuswithJustin/mmdb/core/logic"
	"github.com/FocuswithJustin/mmdb/core/update"
)

const source = `$c ( ) -> wff |- $.
$v ph ps $.
wph $f wff ph $.
wps $f wff ps $.
wi $a wff ( ph -> ps ) $.
${
  min $e |- ph $.
  maj $e |- ( ph -> ps ) $.
  ax-mp $a |- ps $.
$}
ax-1 $a |- ( ph -> ( ps -> ph ) ) $.
th1 $p |- ( ph -> ( ps -> ph ) ) $= ( ax-1 ) ABC $.
`

func load(t *testing.T, src string, interval int) *logic.System {
	t.Helper()
	res, err := loader.LoadString(context.Background(), "test.mm", src, loader.Options{IntervalSize: interval})
	if err != nil || !res.OK() {
		t.Fatalf("load failed: %v %v", err, res.Messages.Messages())
	}
	return res.System
}

func compute(t *testing.T, sys *logic.System) Fingerprint {
	t.Helper()
	fp, err := Compute(sys)
	if err != nil {
		t.Fatal(err)
	}
	return fp
}

func TestComputeMatchesCanonical(t *testing.T) {
	sys := load(t, source, 0)
	fp := compute(t, sys)

	var buf bytes.Buffer
	if err := Canonical(&buf, sys); err != nil {
		t.Fatal(err)
	}
	if fp.BLAKE3 != Blake3Hex(buf.Bytes()) {
		t.Errorf("BLAKE3 = %s, want hash of canonical text", fp.BLAKE3)
	}
	h := blake3.Sum256(buf.Bytes())
	if len(fp.BLAKE3) != 2*len(h) || len(fp.SHA256) != 64 {
		t.Errorf("digest lengths = %d/%d", len(fp.BLAKE3), len(fp.SHA256))
	}
	if fp.Symbols != 7 || fp.Statements != 8 {
		t.Errorf("counts = %d/%d", fp.Symbols, fp.Statements)
	}

	text := buf.String()
	for _, want := range []string{
		"$c wff\n",
		"$v ph\n",
		"$a ax-mp |- ps\n# wph wps min maj\n",
		"$p th1 |- ( ph -> ( ps -> ph ) )\n",
		"$= wph wps ax-1\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("canonical text lacks %q:\n%s", want, text)
		}
	}
}

func TestIntervalSizeIndependent(t *testing.T) {
	a := compute(t, load(t, source, 10))
	b := compute(t, load(t, source, 1000))
	if !a.Equal(b) {
		t.Errorf("fingerprints differ across interval sizes: %s vs %s", a, b)
	}
}

func TestContentChangesFingerprint(t *testing.T) {
	base := compute(t, load(t, source, 0))
	tests := []struct {
		name string
		src  string
	}{
		{"renamed label", strings.Replace(source, "th1", "th2", 1)},
		{"changed proof", strings.Replace(source, "ABC $.", "ABC $.\nth2 $p |- ph $= ? $.", 1)},
		{"reordered variables", strings.Replace(source, "$v ph ps $.", "$v ps ph $.", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if fp := compute(t, load(t, tt.src, 0)); fp.Equal(base) {
				t.Error("fingerprint unchanged")
			}
		})
	}
}

func TestRollbackRestoresFingerprint(t *testing.T) {
	sys := load(t, source, 10)
	before := compute(t, sys)

	u := update.New(sys, nil)
	b, err := u.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Add(update.Theorem{
		Label: "wi-id", TypeCode: "wff", Symbols: []string{"(", "ph", "->", "ph", ")"},
		After: "wi", Proof: []string{"wph", "wph", "wi"},
	}); err != nil {
		t.Fatal(err)
	}
	if compute(t, sys).Equal(before) {
		t.Error("fingerprint unchanged by a splice")
	}
	if err := b.Rollback(); err != nil {
		t.Fatal(err)
	}
	if after := compute(t, sys); !after.Equal(before) {
		t.Errorf("fingerprint after rollback = %s, want %s", after, before)
	}
}
