package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := LoadConfig()

	assert.Equal(t, defaults(), cfg)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "codemate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
maxWorkers: 8
port: "9090"
executionTimeout: 2s
selfModulePaths: ["./lib", "./util"]
bindingMode: live
`), 0o644))
	t.Setenv("CONFIGFILE", path)
	t.Setenv("PORT", "7070")
	t.Setenv("TIMERWINDOW", "250ms")
	t.Setenv("JOBCOUNT", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.ExecutionTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.TimerWindow)
	assert.Equal(t, 64, cfg.JobCount)
	assert.Equal(t, []string{"./lib", "./util"}, cfg.SelfModulePaths)
	assert.Equal(t, "live", cfg.BindingMode)
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("SELFMODULEPATHS", " ./a, ,./b ")

	assert.Equal(t, []string{"./a", "./b"}, getEnvList("SELFMODULEPATHS", nil))
	assert.Equal(t, []string{"x"}, getEnvList("UNSET_LIST_KEY", []string{"x"}))
}
