package lsp_test

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/neovim/go-client/nvim"
	"github.com/stretchr/testify/require"
)

func TestNeovimGoToDefinition(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
		return
	}

	if checkNested(t) {
		return
	}

	testFile(t, sandboxNvim(t), "testdata/gd.cy")
}

func checkNested(t *testing.T) bool {
	if os.Getenv("NVIM") != "" {
		t.Skip("detected running from neovim; skipping to avoid hanging")
		return true
	}

	return false
}

// cursorTest is a "# test: <keys> => <line>" comment. After typing keys
// with the cursor at the start of the commented line, the cursor should be
// on a line containing target, at the offset marked by ┃.
type cursorTest struct {
	keys   string
	target string
	offset int
}

func parseCursorTest(line string) (cursorTest, bool) {
	_, spec, found := strings.Cut(line, "# test: ")
	if !found {
		return cursorTest{}, false
	}
	keys, want, found := strings.Cut(spec, " => ")
	if !found {
		return cursorTest{}, false
	}
	// byte offset, matching the cursor column neovim reports
	offset := strings.Index(want, "┃")
	if offset == -1 {
		return cursorTest{}, false
	}
	return cursorTest{
		keys:   strings.TrimSpace(keys),
		target: strings.Replace(want, "┃", "", 1),
		offset: offset,
	}, true
}

// column is where the cursor should be on line, if line is the target.
func (tc cursorTest) column(line string) (int, bool) {
	idx := strings.Index(line, tc.target)
	if idx == -1 {
		return 0, false
	}
	return idx + tc.offset, true
}

func TestParseCursorTest(t *testing.T) {
	tc, ok := parseCursorTest("  b = a # test: ^wwgd => let ┃a = 2")
	require.True(t, ok)
	require.Equal(t, "^wwgd", tc.keys)
	require.Equal(t, "let a = 2", tc.target)

	col, found := tc.column("  let a = 2")
	require.True(t, found)
	require.Equal(t, 6, col)

	_, found = tc.column("let b = 2")
	require.False(t, found)

	for _, line := range []string{"let a = 1", "a # test: gd", "a # test: gd => no marker"} {
		_, ok := parseCursorTest(line)
		require.False(t, ok, line)
	}
}

// testFile feeds the keys of every cursorTest comment in file and waits for
// the cursor to land where it says.
func testFile(t *testing.T, client *nvim.Nvim, file string) {
	err := client.Command(`edit ` + file)
	require.NoError(t, err)

	testBuf, err := client.CurrentBuffer()
	require.NoError(t, err)

	window, err := client.CurrentWindow()
	require.NoError(t, err)

	require.Eventually(t, func() bool { // wait for LSP client to attach
		var b bool
		err := client.Eval(`luaeval('#vim.lsp.get_clients({ bufnr = 0 }) > 0')`, &b)
		return err == nil && b
	}, 5*time.Second, 10*time.Millisecond)

	lineCount, err := client.BufferLineCount(testBuf)
	require.NoError(t, err)

	t.Cleanup(func() {
		if !t.Failed() {
			return
		}

		lspLogs, err := os.ReadFile("conway-lsp.log")
		if err == nil {
			t.Logf("language server logs:\n\n%s", string(lspLogs))
		}
	})

	for testLine := 1; testLine <= lineCount; testLine++ {
		mode, err := client.Mode()
		require.NoError(t, err)

		if mode.Mode != "n" {
			err = client.FeedKeys("\x1b", "t", true)
			require.NoError(t, err)
		}

		err = client.SetWindowCursor(window, [2]int{testLine, 0})
		require.NoError(t, err)

		lineb, err := client.CurrentLine()
		require.NoError(t, err)

		tc, ok := parseCursorTest(string(lineb))
		if !ok {
			continue
		}

		keys, err := client.ReplaceTermcodes(tc.keys, true, true, true)
		require.NoError(t, err)

		err = client.FeedKeys(keys, "t", true)
		require.NoError(t, err)

		require.Eventually(t, func() bool { // wait for the definition to be found
			line, err := client.CurrentLine()
			if err != nil {
				return false
			}

			pos, err := client.WindowCursor(window)
			if err != nil {
				return false
			}

			col, found := tc.column(string(line))
			if !found {
				t.Logf("L%03d %s\tline %q does not contain %q", testLine, tc.keys, string(line), tc.target)
				return false
			}
			if pos[1] != col {
				t.Logf("L%03d %s\tline %q: at %d, need %d", testLine, tc.keys, string(line), pos[1], col)
				return false
			}
			return true
		}, 5*time.Second, 10*time.Millisecond)

		err = client.SetCurrentBuffer(testBuf)
		require.NoError(t, err)
	}
}

func sandboxNvim(t *testing.T) *nvim.Nvim {
	ctx := context.Background()

	if _, err := exec.LookPath("conway"); err != nil {
		t.Skip("conway not installed; skipping LSP tests")
	}

	cmd := os.Getenv("CONWAY_LSP_NEOVIM_BIN")
	if cmd == "" {
		var err error
		cmd, err = exec.LookPath("nvim")
		if err != nil {
			t.Skip("nvim not installed; skipping LSP tests")
		}
	}

	client, err := nvim.NewChildProcess(
		nvim.ChildProcessCommand(cmd),
		nvim.ChildProcessArgs("--clean", "-n", "--embed", "--headless", "--noplugin", "-V10nvim.log"),
		nvim.ChildProcessContext(ctx),
		nvim.ChildProcessLogf(t.Logf),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		err := client.Close()
		if err != nil {
			t.Logf("failed to close neovim: %s", err)
		}

		if t.Failed() {
			nvimLogs, err := os.ReadFile("nvim.log")
			if err == nil {
				for _, line := range lastN(strings.Split(string(nvimLogs), "\n"), 20) {
					t.Logf("neovim: %s", line)
				}
			}
		}
	})

	err = client.Command(`source testdata/config.vim`)
	require.NoError(t, err)

	return client
}

func lastN[T any](vals []T, n int) []T {
	if len(vals) <= n {
		return vals
	}

	return vals[len(vals)-n:]
}
