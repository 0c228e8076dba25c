package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scrumboard/pkg/rbac"
	"scrumboard/pkg/util"
)

func configDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(`
db:
  name: board
jwt:
  secret: cli-secret
  issuer: https://issuer.example
`), 0o600))
	return dir
}

// run executes the command tree with a silent logger and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_ISSUER", "")

	root := newRootCmd(&app{logger: zap.NewNop()})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--env=", "--config-dir=" + configDir(t)}, args...))

	err := root.Execute()
	return out.String(), err
}

func TestTokenMint(t *testing.T) {
	out, err := run(t, "token", "mint", "--sub=user_1", "--org=org_1", "--role="+rbac.RoleAdmin, "--json")
	require.NoError(t, err)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))

	claims, err := util.ParseSessionToken(body.Token, "cli-secret", "https://issuer.example")
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.Subject)
	assert.Equal(t, "org_1", claims.OrgID)
	assert.Equal(t, "org_1", claims.OrgSlug)
	assert.Equal(t, rbac.RoleAdmin, claims.OrgRole)
}

func TestTokenMint_RejectsUnknownRole(t *testing.T) {
	_, err := run(t, "token", "mint", "--sub=user_1", "--org=org_1", "--role=org:owner")
	assert.ErrorContains(t, err, "unknown role")
}

func TestTokenMint_RequiresSubject(t *testing.T) {
	_, err := run(t, "token", "mint", "--org=org_1")
	assert.Error(t, err)
}

func TestMigrateList(t *testing.T) {
	out, err := run(t, "migrate", "--list")
	require.NoError(t, err)
	assert.Equal(t, "0001_init", strings.TrimSpace(out))
}

func TestMissingConfigFails(t *testing.T) {
	root := newRootCmd(&app{logger: zap.NewNop()})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config-dir=" + t.TempDir(), "migrate", "--list"})

	assert.ErrorContains(t, root.Execute(), "load config")
}
