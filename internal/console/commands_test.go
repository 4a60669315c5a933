package console_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flexmon/console-auth/internal/console"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := console.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func setupCLI(t *testing.T) *fakePlatform {
	t.Helper()
	platform := newFakePlatform(t)
	t.Setenv("FLEXMON_API_BASE_URL", platform.URL)
	t.Setenv("FLEXMON_CREDENTIALS_DSN", "file:"+filepath.Join(t.TempDir(), "credentials.db"))
	return platform
}

func TestCLI_LoginWhoamiLogout(t *testing.T) {
	setupCLI(t)

	out, _, err := runCLI(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	out, _, err = runCLI(t, "", "login", "--username", "admin", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as admin (Platform Admin)")

	out, _, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "[A] admin")
	assert.Contains(t, out, "Role:   Platform Admin")

	out, _, err = runCLI(t, "", "whoami", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"role": "platform_admin"`)

	out, _, err = runCLI(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out admin")

	out, _, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestCLI_LoginReadsPasswordFromStdin(t *testing.T) {
	setupCLI(t)

	out, _, err := runCLI(t, "secret\n", "login", "-u", "jane_doe", "--tenant", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as jane_doe (Reporter)")
}

func TestCLI_LoginRejected(t *testing.T) {
	setupCLI(t)

	_, _, err := runCLI(t, "", "login", "-u", "admin", "-p", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect username or password", err.Error())
}

func TestCLI_RevokedSessionPrintsHint(t *testing.T) {
	platform := setupCLI(t)

	_, _, err := runCLI(t, "", "login", "-u", "admin", "-p", "secret")
	require.NoError(t, err)

	platform.revoke("tok-admin")

	out, errOut, err := runCLI(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
	assert.Contains(t, errOut, "flexmon-console login")
}
