package manifest_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orcalabs/orca-go/pkg/manifest"
)

const validManifest = `
name: orca-tradingsim
version: 1.2.3
authors:
  - Orca Labs
dependencies:
  orca-sdk: ">= 1.0.0, < 2.0.0"
algorithms:
  - name: DataLoader
    version: 1.0.0
    windowType: WindowA
    windowVersion: 1.0.0
`

func TestParse(t *testing.T) {
	m, err := manifest.Parse(strings.NewReader(validManifest))
	require.NoError(t, err)

	assert.Equal(t, "orca-tradingsim", m.Name)
	assert.Equal(t, "1.2.3", m.Version)
	assert.Equal(t, []string{"Orca Labs"}, m.Authors)
	assert.Equal(t, ">= 1.0.0, < 2.0.0", m.Dependencies["orca-sdk"])
	require.Len(t, m.Algorithms, 1)
	assert.Equal(t, "DataLoader", m.Algorithms[0].Name)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown field",
			yaml: "name: orca-sdk\nversion: 1.0.0\nextra: true\n",
		},
		{
			name: "uppercase name",
			yaml: "name: OrcaSDK\nversion: 1.0.0\n",
		},
		{
			name: "bad version",
			yaml: "name: orca-sdk\nversion: 1.0\n",
		},
		{
			name: "bad constraint",
			yaml: "name: orca-sdk\nversion: 1.0.0\ndependencies:\n  dep: \"not a constraint\"\n",
		},
		{
			name: "bad algorithm version",
			yaml: "name: orca-sdk\nversion: 1.0.0\nalgorithms:\n  - name: DataLoader\n    version: one\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manifest.Parse(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validManifest), 0o600))

	m, err := manifest.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "orca-tradingsim", m.Name)

	_, err = manifest.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestManifest_Satisfies(t *testing.T) {
	m, err := manifest.Parse(strings.NewReader(validManifest))
	require.NoError(t, err)

	ok, err := m.Satisfies("orca-sdk", "1.4.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Satisfies("orca-sdk", "2.0.0")
	require.NoError(t, err)
	assert.False(t, ok)

	// Unconstrained dependencies are always satisfied.
	ok, err = m.Satisfies("unlisted", "0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = m.Satisfies("orca-sdk", "not-a-version")
	assert.Error(t, err)
}
