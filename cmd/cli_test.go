package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/numsel/internal/application"
	"github.com/bnema/numsel/internal/domain"
)

func TestVersionPrintsBuildVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestStatusBeforeInitShowsHint(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "available: 0  taken: 0  total: 0")
	assert.Contains(t, stdout, "not initialized yet")
}

func TestInitIsIdempotent(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "init")
	require.NoError(t, err)
	assert.Equal(t, "Created 50 numbers.\n", stdout)

	stdout, _, err = executeCLI(t, home, "init", "--total", "10")
	require.NoError(t, err)
	assert.Contains(t, stdout, "already initialized")

	stdout, _, err = executeCLI(t, home, "status", "--json")
	require.NoError(t, err)

	var summary application.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 50, summary.Total)
	assert.Equal(t, 50, summary.Available)
	assert.Len(t, summary.Numbers, 50)
	assert.Empty(t, summary.Participants)
}

func TestInitHonorsBareTotalNumbersEnv(t *testing.T) {
	t.Setenv("TOTAL_NUMBERS", "12")

	stdout, _, err := executeCLI(t, t.TempDir(), "init")
	require.NoError(t, err)
	assert.Equal(t, "Created 12 numbers.\n", stdout)
}

func TestInitReadsConfigFile(t *testing.T) {
	home := t.TempDir()
	configDir := filepath.Join(home, configDirName)
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	storePath := filepath.Join(home, "shared", "board.toml")
	config := fmt.Sprintf("total_numbers = 7\n\n[store]\npath = %q\n", storePath)
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(config), 0o600))

	stdout, _, err := executeCLI(t, home, "init")
	require.NoError(t, err)
	assert.Equal(t, "Created 7 numbers.\n", stdout)
	assert.FileExists(t, storePath)
}

func TestInitReadsDotenvFromWorkingDirectory(t *testing.T) {
	t.Setenv("NUMSEL_TOTAL_NUMBERS", "")
	require.NoError(t, os.Unsetenv("NUMSEL_TOTAL_NUMBERS"))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NUMSEL_TOTAL_NUMBERS=9\n"), 0o600))
	t.Chdir(dir)

	stdout, _, err := executeCLI(t, t.TempDir(), "init")
	require.NoError(t, err)
	assert.Equal(t, "Created 9 numbers.\n", stdout)
}

func TestUnknownBackendIsRejected(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "status", "--backend", "etcd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store.backend "etcd"`)
}

func TestUnknownLogLevelIsRejected(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "status", "--log-level", "verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown log.level "verbose"`)

	_, _, err = executeCLI(t, t.TempDir(), "status", "--log-level", "DEBUG")
	require.NoError(t, err)
}

func TestPostgresBackendRequiresDSN(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "status", "--backend", "postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.dsn is required")
}

func TestClaimThenStatusListsParticipant(t *testing.T) {
	home := t.TempDir()
	_, _, err := executeCLI(t, home, "init")
	require.NoError(t, err)

	stdout, stderr, err := executeCLI(t, home, "claim", "7", "--name", "  Ana ")
	require.NoError(t, err)
	assert.Equal(t, "Number 7 is yours, Ana.\n", stdout)
	assert.Contains(t, stderr, "✓ number 7 claimed")

	stdout, _, err = executeCLI(t, home, "status", "--no-board")
	require.NoError(t, err)
	assert.Contains(t, stdout, "available: 49  taken: 1  total: 50")
	assert.Contains(t, stdout, "#7")
	assert.Contains(t, stdout, "Ana")

	_, _, err = executeCLI(t, home, "claim", "7", "--name", "Luis")
	require.ErrorIs(t, err, domain.ErrAlreadyTaken)
	assert.Contains(t, err.Error(), "number 7 is already taken")
}

func TestClaimErrors(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "claim", "3", "--name", "Ana")
	require.ErrorIs(t, err, domain.ErrNotInitialized)

	_, _, err = executeCLI(t, home, "init", "--total", "5")
	require.NoError(t, err)

	tests := []struct {
		name    string
		args    []string
		wantIs  error
		wantMsg string
	}{
		{name: "blank name", args: []string{"claim", "3", "--name", "   "}, wantIs: domain.ErrInvalidName},
		{name: "unknown number", args: []string{"claim", "6", "--name", "Ana"}, wantIs: domain.ErrSlotNotFound},
		{name: "not a number", args: []string{"claim", "abc", "--name", "Ana"}, wantMsg: `invalid number "abc"`},
		{name: "zero", args: []string{"claim", "0", "--name", "Ana"}, wantMsg: `invalid number "0"`},
		{name: "missing name flag", args: []string{"claim", "3"}, wantMsg: `required flag(s) "name" not set`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := executeCLI(t, home, tc.args...)
			require.Error(t, err)
			if tc.wantIs != nil {
				assert.ErrorIs(t, err, tc.wantIs)
			}
			if tc.wantMsg != "" {
				assert.Contains(t, err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestPickClaimsSelectedNumber(t *testing.T) {
	stdout, _, err := executeCLIWithInput(t, t.TempDir(), "7\nAna\ny\n", "pick", "--backend", "memory")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Pick a number (q to quit): ")
	assert.Contains(t, stdout, "selected: #7")
	assert.Less(t, strings.Index(stdout, "selected: #7"), strings.Index(stdout, "Claim number 7 as Ana? [y/N]: "))
	assert.Contains(t, stdout, "Claim number 7 as Ana? [y/N]: ")
	assert.Contains(t, stdout, "Number 7 is yours, Ana.")
}

func TestPickCancelThenQuit(t *testing.T) {
	stdout, _, err := executeCLIWithInput(t, t.TempDir(), "4\nn\nq\n", "pick", "--backend", "memory", "--name", "Ana")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cancelled.")
	assert.NotContains(t, stdout, "is yours")
}

func TestPickRefusesTakenAndUnknownNumbers(t *testing.T) {
	home := t.TempDir()
	_, _, err := executeCLI(t, home, "init", "--total", "10")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "claim", "5", "--name", "Ana")
	require.NoError(t, err)

	stdout, _, err := executeCLIWithInput(t, home, "5\n11\nx\n", "pick")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Number 5 is not available.")
	assert.Contains(t, stdout, "Number 11 does not exist.")
	assert.Contains(t, stdout, `invalid number "x"`)
}

func TestWatchPrintsSummaryLine(t *testing.T) {
	home := t.TempDir()
	_, _, err := executeCLI(t, home, "init")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "claim", "2", "--name", "Ana")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "watch", "--count", "1")
	require.NoError(t, err)
	assert.Equal(t, "available=49 taken=1 total=50 participants=#2 Ana\n", stdout)
}

func TestServeHTTPServesNumbersAndStopsOnCancel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := newConfig()
	cfg.Set(keyStoreBackend, backendMemory)
	cfg.Set(keyTotalNumbers, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := wireApp(ctx, cfg, io.Discard, true)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	baseURL := "http://" + ln.Addr().String()

	errCh := make(chan error, 1)
	go func() { errCh <- serveHTTP(ctx, app, ln) }()

	var summary application.Summary
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/v1/numbers")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&summary) == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 5, summary.Total)

	resp, err := http.Post(baseURL+"/v1/numbers/3/claim", "application/json", strings.NewReader(`{"name":"Ana"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestWireAppFailsOnUnreachableRedis(t *testing.T) {
	cfg := newConfig()
	cfg.Set(keyStoreBackend, backendRedis)
	cfg.Set(keyRedisAddr, "127.0.0.1:1")

	_, err := wireApp(context.Background(), cfg, io.Discard, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping 127.0.0.1:1")
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWithInput(t, home, "", args...)
}

func executeCLIWithInput(t *testing.T, home, input string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	for _, key := range []string{"NUMSEL_STORE_BACKEND", "NUMSEL_STORE_PATH", "NUMSEL_AMQP_URL", "NUMSEL_LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(input))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
