package suite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/suite"
	"github.com/mrz1836/trellis/internal/tenant"
)

func TestLoadTenants(t *testing.T) {
	t.Setenv("TRELLIS_TEST_ACME_PASSWORD", "s3cret")

	dir := t.TempDir()
	writeFile(t, dir, "acme.yaml", `
id: acme
base_url_web: https://acme.example.com
base_url_api: https://api.example.com/acme
credentials:
  admin:
    username: qa-admin@acme.test
    password: ${TRELLIS_TEST_ACME_PASSWORD}
  employee:
    username: qa-employee@acme.test
    password: pa$$word
features:
  projects_v2: true
`)
	writeFile(t, dir, "globex.json", `{
  "base_url_web": "https://globex.example.com",
  "base_url_api": "https://api.example.com/globex",
  "credentials": {"manager": {"username": "qa-manager@globex.test", "password": "pw"}}
}`)
	writeFile(t, dir, "README.md", "not a tenant")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o750))

	registry, err := suite.LoadTenants(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex"}, registry.IDs())

	acme, err := registry.Resolve("acme")
	require.NoError(t, err)
	admin, err := acme.Credential(tenant.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", admin.Password)
	employee, err := acme.Credential(tenant.RoleEmployee)
	require.NoError(t, err)
	assert.Equal(t, "pa$$word", employee.Password)
	assert.True(t, acme.Feature("projects_v2"))

	globex, err := registry.Resolve("globex")
	require.NoError(t, err)
	assert.Equal(t, "https://globex.example.com", globex.BaseURLWeb)
	_, err = globex.Credential(tenant.RoleManager)
	require.NoError(t, err)
}

func TestLoadTenants_Errors(t *testing.T) {
	valid := func(id string) string {
		return `
id: ` + id + `
base_url_web: https://web.example.com
base_url_api: https://api.example.com
credentials:
  admin: {username: qa, password: pw}
`
	}

	tests := []struct {
		name  string
		files map[string]string
		want  error
	}{
		{
			name:  "unset environment variable",
			files: map[string]string{"acme.yaml": valid("acme") + "features: {x: \"${TRELLIS_TEST_NEVER_SET}\"}\n"},
			want:  trellerrors.ErrEmptyValue,
		},
		{
			name: "no credentials",
			files: map[string]string{"acme.yaml": `
base_url_web: https://web.example.com
base_url_api: https://api.example.com
`},
			want: trellerrors.ErrInvalidTenant,
		},
		{
			name:  "relative base url",
			files: map[string]string{"acme.yaml": "base_url_web: /acme\nbase_url_api: https://api.example.com\ncredentials: {admin: {username: qa}}\n"},
			want:  trellerrors.ErrInvalidURL,
		},
		{
			name:  "duplicate id across files",
			files: map[string]string{"one.yaml": valid("acme"), "two.yaml": valid("acme")},
			want:  trellerrors.ErrDuplicateID,
		},
		{
			name:  "malformed json",
			files: map[string]string{"acme.json": `{"id": `},
			want:  trellerrors.ErrInvalidTenant,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tc.files {
				writeFile(t, dir, name, content)
			}
			_, err := suite.LoadTenants(context.Background(), dir)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadTenants_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := suite.LoadTenants(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, trellerrors.ErrInvalidTenant)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadTenantFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "acme.toml", "id = 'acme'")
	_, err := suite.LoadTenantFile(path)
	require.ErrorIs(t, err, trellerrors.ErrInvalidTenant)
}
