package providers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kvilt1/merger-simple/internal/structures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigProvider_DefaultsFromFlags(t *testing.T) {
	out := t.TempDir()
	conf, err := NewConfigProvider(&structures.CliFlags{ExportDir: "/data/export", OutputDir: out})
	require.NoError(t, err)

	assert.Equal(t, AppName, conf.AppName)
	assert.Equal(t, structures.PoolNamingDigest, conf.Output.PoolNaming)
	assert.Equal(t, structures.DefaultMatchTolerance, conf.Matching.Tolerance)
	assert.Equal(t, structures.DefaultMatchTolerance, conf.Matching.ClusterGap)
	assert.Equal(t, 5*time.Minute, conf.Fusion.Timeout)
	assert.Equal(t, DefaultFusionWorkers(), conf.Fusion.Workers)
	assert.Equal(t, DefaultIOWorkers(), conf.IO.Workers)
	assert.Equal(t, filepath.Join(out, ".work"), conf.Output.WorkDir)
	assert.Equal(t, filepath.Join(out, ".work", "pool"), conf.PoolDir())
	assert.True(t, conf.Validation.Enabled)
	assert.True(t, conf.Output.Pretty)
}

func TestNewConfigProvider_FlagsOverride(t *testing.T) {
	conf, err := NewConfigProvider(&structures.CliFlags{
		ExportDir:  "/data/export",
		OutputDir:  "/data/out",
		NoHash:     true,
		Compact:    true,
		NoValidate: true,
		Workers:    3,
		DebugMode:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, structures.PoolNamingName, conf.Output.PoolNaming)
	assert.False(t, conf.Output.Pretty)
	assert.False(t, conf.Validation.Enabled)
	assert.Equal(t, 3, conf.IO.Workers)
	assert.Equal(t, "debug", conf.Logger.Level)
	assert.True(t, conf.Debug)
}

func TestNewConfigProvider_YamlFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapdays.yaml")
	yaml := `input:
  exportDir: /srv/export
output:
  dir: /srv/out
  poolNaming: name
matching:
  tolerance: 30s
  dateCorrelation: false
fusion:
  workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	conf, err := NewConfigProvider(&structures.CliFlags{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "/srv/export", conf.Input.ExportDir)
	assert.Equal(t, structures.PoolNamingName, conf.Output.PoolNaming)
	assert.Equal(t, 30*time.Second, conf.Matching.Tolerance)
	assert.False(t, conf.Matching.DateCorrelation)
	assert.Equal(t, 2, conf.Fusion.Workers)
	assert.Equal(t, path, conf.Path)
}

func TestNewConfigProvider_EnvOverride(t *testing.T) {
	t.Setenv("SNAPDAYS_INPUT", "/env/export")
	t.Setenv("SNAPDAYS_OUTPUT", "/env/out")
	t.Setenv("SNAPDAYS_MATCH_TOLERANCE", "90s")

	conf, err := NewConfigProvider(&structures.CliFlags{})
	require.NoError(t, err)
	assert.Equal(t, "/env/export", conf.Input.ExportDir)
	assert.Equal(t, "/env/out", conf.Output.Dir)
	assert.Equal(t, 90*time.Second, conf.Matching.Tolerance)
}

func TestNewConfigProvider_MissingOutput(t *testing.T) {
	_, err := NewConfigProvider(&structures.CliFlags{ExportDir: "/data/export"})
	assert.Error(t, err)
}

func TestNewConfigProvider_ValidateOnlyNeedsNoInput(t *testing.T) {
	conf, err := NewConfigProvider(&structures.CliFlags{OutputDir: "/data/out", ValidateOnly: true})
	require.NoError(t, err)
	assert.Equal(t, "/data/out", conf.Output.Dir)
}

func TestNewConfigProvider_MissingFile(t *testing.T) {
	_, err := NewConfigProvider(&structures.CliFlags{ConfigPath: "/nonexistent/snapdays.yaml"})
	assert.Error(t, err)
}
