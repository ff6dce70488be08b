package validate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIverilog mimics the iverilog command line: it rejects any source
// mentioning undeclared_sig, otherwise concatenates sources into -o.
const fakeIverilog = `#!/bin/sh
out=""; srcs=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2;;
    -s|-I) shift 2;;
    -g*) shift;;
    *) srcs="$srcs $1"; shift;;
  esac
done
[ -n "$FAKE_LOG" ] && echo "$srcs" >> "$FAKE_LOG"
for f in $srcs; do
  if grep -q undeclared_sig "$f"; then
    echo "$f:3: error: Unable to bind wire/reg/memory 'undeclared_sig' in 'tb'" >&2
    echo "1 error(s) during elaboration." >&2
    exit 1
  fi
  if grep -q hang_forever "$f"; then
    sleep 5
  fi
done
cat $srcs > "$out"
`

// fakeVVP prints the success marker unless the compiled image mentions BAD.
const fakeVVP = `#!/bin/sh
if grep -q BAD "$1"; then
  echo "ERROR: y mismatch"
  exit 1
fi
echo "TESTS PASSED"
`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o755))
	return p
}

func fakeToolchain(t *testing.T) (iverilog, vvp string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script toolchain fakes need a POSIX shell")
	}
	dir := t.TempDir()
	return writeScript(t, dir, "iverilog", fakeIverilog), writeScript(t, dir, "vvp", fakeVVP)
}

const candidate = "module passthrough(input a, output y); assign y = a; endmodule\n"

func TestIverilogPass(t *testing.T) {
	bin, _ := fakeToolchain(t)
	v := &Iverilog{Bin: bin}
	res, err := v.Validate(context.Background(), "module tb; initial $finish; endmodule\n", candidate, "tb")
	require.NoError(t, err)
	assert.True(t, res.Pass)
	assert.Empty(t, res.Diagnostic)
	assert.Equal(t, "pass", res.String())
}

func TestIverilogFailCarriesDiagnostic(t *testing.T) {
	bin, _ := fakeToolchain(t)
	v := &Iverilog{Bin: bin}
	tb := "module tb;\n  reg a;\n  assign undeclared_sig = a;\nendmodule\n"
	res, err := v.Validate(context.Background(), tb, candidate, "tb")
	require.NoError(t, err)
	assert.False(t, res.Pass)
	assert.Contains(t, res.Diagnostic, "undeclared_sig")
	assert.Contains(t, res.Diagnostic, "tb.v:3: error")
	assert.NotContains(t, res.Diagnostic, os.TempDir()+string(filepath.Separator)+"tbsynth-validate-")
}

func TestIverilogIsIdempotent(t *testing.T) {
	bin, _ := fakeToolchain(t)
	v := &Iverilog{Bin: bin}
	tb := "module tb; wire x = undeclared_sig; endmodule\n"
	first, err := v.Validate(context.Background(), tb, candidate, "tb")
	require.NoError(t, err)
	second, err := v.Validate(context.Background(), tb, candidate, "tb")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIverilogRemovesWorkspace(t *testing.T) {
	bin, _ := fakeToolchain(t)
	logPath := filepath.Join(t.TempDir(), "calls.log")
	t.Setenv("FAKE_LOG", logPath)

	v := &Iverilog{Bin: bin}
	for _, tb := range []string{"module tb; endmodule\n", "module tb; undeclared_sig; endmodule\n"} {
		_, err := v.Validate(context.Background(), tb, candidate, "tb")
		require.NoError(t, err)
	}
	raw, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		srcs := strings.Fields(l)
		require.NotEmpty(t, srcs)
		_, statErr := os.Stat(filepath.Dir(srcs[0]))
		assert.True(t, os.IsNotExist(statErr), "workspace %s left behind", filepath.Dir(srcs[0]))
	}
}

func TestIverilogLaunchFaultIsDistinct(t *testing.T) {
	v := &Iverilog{Bin: filepath.Join(t.TempDir(), "no-such-iverilog")}
	_, err := v.Validate(context.Background(), "module tb; endmodule", candidate, "tb")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLaunch)
}

func TestIverilogTimeout(t *testing.T) {
	bin, _ := fakeToolchain(t)
	v := &Iverilog{Bin: bin, Timeout: 100 * time.Millisecond}
	_, err := v.Validate(context.Background(), "module tb; // hang_forever\nendmodule\n", candidate, "tb")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCachedSkipsRepeatCompiles(t *testing.T) {
	calls := 0
	inner := ValidatorFunc(func(ctx context.Context, artifact, candidate, top string) (Result, error) {
		calls++
		if strings.Contains(artifact, "bad") {
			return Failed("bad"), nil
		}
		return Passed(), nil
	})
	c, err := NewCached(inner, 4)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r, err := c.Validate(ctx, "bad tb", "cand", "tb")
		require.NoError(t, err)
		assert.Equal(t, Failed("bad"), r)
	}
	assert.Equal(t, 1, calls)

	_, err = c.Validate(ctx, "good tb", "cand", "tb")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, c.Len())
}

func TestCachedDoesNotCacheFaults(t *testing.T) {
	calls := 0
	inner := ValidatorFunc(func(ctx context.Context, artifact, candidate, top string) (Result, error) {
		calls++
		return Result{}, ErrLaunch
	})
	c, err := NewCached(inner, 0)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := c.Validate(context.Background(), "a", "b", "tb")
		assert.True(t, errors.Is(err, ErrLaunch))
	}
	assert.Equal(t, 2, calls)
}

func TestCacheKeySeparatesFields(t *testing.T) {
	assert.NotEqual(t, cacheKey("ab", "c"), cacheKey("a", "bc"))
}

func TestSimulatorReportsMarker(t *testing.T) {
	iv, vvp := fakeToolchain(t)
	dir := t.TempDir()
	tb := filepath.Join(dir, "tb.v")
	good := filepath.Join(dir, "mutant_0.v")
	bad := filepath.Join(dir, "mutant_1.v")
	broken := filepath.Join(dir, "mutant_2.v")
	require.NoError(t, os.WriteFile(tb, []byte("module tb; endmodule\n"), 0o644))
	require.NoError(t, os.WriteFile(good, []byte("module m; endmodule\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("module m; // BAD\nendmodule\n"), 0o644))
	require.NoError(t, os.WriteFile(broken, []byte("module m; undeclared_sig; endmodule\n"), 0o644))

	sim := &Simulator{Compiler: &Iverilog{Bin: iv}, VVP: vvp}
	ctx := context.Background()

	r, err := sim.Run(ctx, "tb", tb, good)
	require.NoError(t, err)
	assert.True(t, r.Compiled)
	assert.True(t, r.Passed)

	r, err = sim.Run(ctx, "tb", tb, bad)
	require.NoError(t, err)
	assert.True(t, r.Compiled)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Output, "ERROR: y mismatch")

	r, err = sim.Run(ctx, "tb", tb, broken)
	require.NoError(t, err)
	assert.False(t, r.Compiled)
	assert.False(t, r.Passed)
}

func TestSimulatorMissingVVP(t *testing.T) {
	iv, _ := fakeToolchain(t)
	dir := t.TempDir()
	tb := filepath.Join(dir, "tb.v")
	require.NoError(t, os.WriteFile(tb, []byte("module tb; endmodule\n"), 0o644))
	sim := &Simulator{Compiler: &Iverilog{Bin: iv}, VVP: filepath.Join(dir, "missing-vvp")}
	_, err := sim.Run(context.Background(), "tb", tb)
	assert.ErrorIs(t, err, ErrLaunch)
}
