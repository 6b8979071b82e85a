package dispatch_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alanmeadows/termbridge/internal/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNamer() string { return "fixed" }

var corpus = []string{
	"print('hello')",
	"import os\nprint(os.getcwd())\n",
	"echo \"$HOME\" `date` $(whoami)",
	"x = '''\nTERMUX_BRIDGE_EOF\n'''",
	"TERMUX_BRIDGE_EOF TERMUX_BRIDGE_EOF_1",
	"",
	"#include <stdio.h>\nint main(void) { printf(\"hi\\n\"); return 0; }\n",
}

func TestShellPassthrough(t *testing.T) {
	reg := dispatch.DefaultRegistry(dispatch.WithNamer(fixedNamer))
	for _, tag := range []string{"sh", "bash"} {
		for _, src := range corpus {
			got, err := reg.Wrap(tag, src)
			require.NoError(t, err)
			assert.Equal(t, src, got)
		}
	}
}

func TestPythonHeredoc(t *testing.T) {
	reg := dispatch.DefaultRegistry(dispatch.WithNamer(fixedNamer))

	got, err := reg.Wrap("python", "print('hello')")
	require.NoError(t, err)
	assert.Equal(t, "{ python - <<'TERMUX_BRIDGE_EOF'\nprint('hello')\nTERMUX_BRIDGE_EOF\n}", got)

	for _, src := range corpus {
		got, err := reg.Wrap("python", src)
		require.NoError(t, err)

		sentinel := dispatch.Sentinel(src)
		assert.NotContains(t, src, sentinel)

		open := "<<'" + sentinel + "'\n"
		start := strings.Index(got, open)
		require.GreaterOrEqual(t, start, 0, "quoted sentinel missing in %q", got)
		body := got[start+len(open):]
		end := strings.LastIndex(body, "\n"+sentinel+"\n")
		require.GreaterOrEqual(t, end, 0)
		assert.Contains(t, body[:end+1], src)
	}
}

func TestSentinelAvoidsCollisions(t *testing.T) {
	assert.Equal(t, "TERMUX_BRIDGE_EOF", dispatch.Sentinel("print(1)"))
	assert.Equal(t, "TERMUX_BRIDGE_EOF_1", dispatch.Sentinel("TERMUX_BRIDGE_EOF"))
	assert.Equal(t, "TERMUX_BRIDGE_EOF_2", dispatch.Sentinel("TERMUX_BRIDGE_EOF TERMUX_BRIDGE_EOF_1"))
}

func TestCCompileRunCleansUpUnconditionally(t *testing.T) {
	reg := dispatch.DefaultRegistry(dispatch.WithNamer(fixedNamer))

	got, err := reg.Wrap("c", "int main(void) { return 0; }")
	require.NoError(t, err)

	assert.Contains(t, got, "cat > .termux_bridge_fixed.c <<'TERMUX_BRIDGE_EOF'\n")
	assert.Contains(t, got, "clang .termux_bridge_fixed.c -o .termux_bridge_fixed_exe && ./.termux_bridge_fixed_exe; ")
	assert.True(t, strings.HasSuffix(got, "; rm -f .termux_bridge_fixed.c .termux_bridge_fixed_exe; }"), got)
	assert.NotContains(t, got, "&& rm")
	assert.NotContains(t, got, "exit")
}

func TestUnknownLanguage(t *testing.T) {
	reg := dispatch.DefaultRegistry()
	_, err := reg.Wrap("Python", "print(1)")
	assert.ErrorIs(t, err, dispatch.ErrUnknownLanguage)
	assert.False(t, reg.Supports("Python"))
}

func TestLookupStrategies(t *testing.T) {
	reg := dispatch.DefaultRegistry()

	w, ok := reg.Lookup("bash")
	require.True(t, ok)
	assert.Equal(t, dispatch.Passthrough{}, w)

	w, ok = reg.Lookup("py")
	require.True(t, ok)
	assert.Equal(t, dispatch.Heredoc{Interpreter: "python"}, w)

	w, ok = reg.Lookup("rust")
	require.True(t, ok)
	cr, isCompile := w.(dispatch.CompileRun)
	require.True(t, isCompile)
	assert.Equal(t, "rustc", cr.Compiler)
	assert.Equal(t, ".rs", cr.Ext)

	_, ok = reg.Lookup("cobol")
	assert.False(t, ok)
}

func TestEveryRegisteredLanguageWraps(t *testing.T) {
	reg := dispatch.DefaultRegistry(dispatch.WithNamer(fixedNamer))
	langs := reg.Languages()
	assert.Contains(t, langs, "python")
	assert.Contains(t, langs, "c")
	assert.Contains(t, langs, "sh")
	assert.IsIncreasing(t, langs)

	src := "synthetic body 42"
	for _, tag := range langs {
		got, err := reg.Wrap(tag, src)
		require.NoError(t, err, tag)
		assert.Contains(t, got, src, tag)
	}
}

func TestRegisterExtends(t *testing.T) {
	reg := dispatch.NewRegistry()
	reg.Register("upper", dispatch.WrapperFunc(strings.ToUpper))
	got, err := reg.Wrap("upper", "echo hi")
	require.NoError(t, err)
	assert.Equal(t, "ECHO HI", got)
}

func TestUniqueNamer(t *testing.T) {
	a, b := dispatch.UniqueNamer(), dispatch.UniqueNamer()
	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)
}

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func runShell(t *testing.T, sh, dir, line string) string {
	t.Helper()
	cmd := exec.Command(sh, "-c", line)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return string(out)
}

func TestHeredocPerformsNoSubstitution(t *testing.T) {
	sh := requireShell(t)
	src := "echo \"$HOME\" `date` $(whoami)\nTERMUX_BRIDGE_EOF\n"
	line := dispatch.Heredoc{Interpreter: "cat"}.Wrap(src)

	out := runShell(t, sh, t.TempDir(), line)
	assert.Equal(t, src, out)
}

func TestCompileRunFailedCompileLeavesNoArtifacts(t *testing.T) {
	sh := requireShell(t)
	dir := t.TempDir()

	line := dispatch.CompileRun{Compiler: "false", Ext: ".c", Namer: fixedNamer}.Wrap("int main(void) {")
	runShell(t, sh, dir, line)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCompileRunSuccessRunsAndCleansUp(t *testing.T) {
	sh := requireShell(t)
	dir := t.TempDir()

	// The fake compiler copies its "source" (a shell script) to the output path.
	compiler := filepath.Join(t.TempDir(), "fakecc")
	script := "#!/bin/sh\ncp \"$1\" \"$3\" && chmod +x \"$3\"\n"
	require.NoError(t, os.WriteFile(compiler, []byte(script), 0o755))

	line := dispatch.CompileRun{Compiler: compiler, Ext: ".sh", Namer: fixedNamer}.Wrap("#!/bin/sh\necho ran\n")
	out := runShell(t, sh, dir, line)
	assert.Equal(t, "ran\n", out)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
