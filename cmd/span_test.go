package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/peer"
)

type spanEnv struct {
	*testEnv
	staging string
	media   string
}

// newSpanEnv stages three files of 60, 50 and 30 bytes for discs of 100 bytes.
func newSpanEnv(t *testing.T, capacity string) *spanEnv {
	t.Helper()
	root := t.TempDir()
	env := &spanEnv{staging: filepath.Join(root, "staging"), media: filepath.Join(root, "media")}
	env.testEnv = newTestEnv(t, "store:\n"+
		"  source_dir: "+env.staging+"\n"+
		"  media:\n"+
		"    type: directory\n"+
		"    target: "+env.media+"\n"+
		"    capacity: "+capacity+"\n")

	for path, size := range map[string]int{
		filepath.Join("2024", "03", "12", "host1", "a.tar"): 60,
		filepath.Join("2024", "03", "12", "host1", "b.tar"): 50,
		filepath.Join("2024", "03", "13", "host2", "c.tar"): 30,
	} {
		full := filepath.Join(env.staging, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, make([]byte, size), 0o644))
	}
	return env
}

func TestSpan_DryRun(t *testing.T) {
	env := newSpanEnv(t, "100")

	stdout, _, err := execute(t, env.args("span", "--dry-run", "--cushion", "0")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Total size: 140 B")
	assert.Contains(t, stdout, "at least 2 discs")
	assert.Contains(t, stdout, `Using the "worst" algorithm the data fits on 2 discs`)
	assert.Contains(t, stdout, "Disc 1: 2 files, 80 B, 80.00% utilization")
	assert.Contains(t, stdout, "Disc 2: 1 files, 60 B, 60.00% utilization")
	assert.NoDirExists(t, env.media)
	assert.NoFileExists(t, filepath.Join(env.staging, "2024", "03", "12", peer.StoreIndicator))
}

func TestSpan_Write(t *testing.T) {
	env := newSpanEnv(t, "100")

	RootCmd.SetIn(strings.NewReader("\n\n"))
	stdout, _, err := execute(t, env.args("span", "--algorithm", "best", "--cushion", "0")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Please place the first disc")
	assert.Contains(t, stdout, "Please replace the disc")

	// best fit puts a.tar and c.tar on the first disc and b.tar on the last.
	assert.FileExists(t, filepath.Join(env.media, "2024", "03", "12", "host1", "b.tar"))
	assert.FileExists(t, filepath.Join(env.staging, "2024", "03", "12", peer.StoreIndicator))
	assert.FileExists(t, filepath.Join(env.staging, "2024", "03", "13", peer.StoreIndicator))

	stdout, _, err = execute(t, env.args("span", "--yes")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "already been stored")
}

func TestSpan_FlagsDoNotCarryOver(t *testing.T) {
	env := newSpanEnv(t, "100")

	stdout, _, err := execute(t, env.args("span", "--dry-run", "--algorithm", "best", "--cushion", "0")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, `Using the "best" algorithm`)

	stdout, _, err = execute(t, env.args("span", "--dry-run")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, `Using the "worst" algorithm`)
	assert.Contains(t, stdout, "Capacity with a 4.50% cushion: 95 B")
}

func TestSpan_Errors(t *testing.T) {
	t.Run("unknown algorithm", func(t *testing.T) {
		env := newSpanEnv(t, "100")
		_, _, err := execute(t, env.args("span", "--algorithm", "random")...)
		assert.ErrorIs(t, err, errUtils.ErrUnknownAlgorithm)
		assert.Equal(t, errUtils.ExitUsage, errUtils.GetExitCode(err))
	})

	t.Run("unbounded media", func(t *testing.T) {
		env := newSpanEnv(t, "0")
		_, _, err := execute(t, env.args("span")...)
		assert.ErrorIs(t, err, errUtils.ErrInvalidConfig)
		assert.Equal(t, errUtils.ExitConfig, errUtils.GetExitCode(err))
	})

	t.Run("file larger than a disc", func(t *testing.T) {
		env := newSpanEnv(t, "55")
		_, _, err := execute(t, env.args("span", "--yes", "--cushion", "0")...)
		assert.ErrorIs(t, err, errUtils.ErrItemTooLarge)
		assert.Equal(t, errUtils.ExitExecution, errUtils.GetExitCode(err))
	})
}
