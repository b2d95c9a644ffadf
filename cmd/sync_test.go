package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/cedar-backup/cback/errors"
)

func TestSync_Usage(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no arguments", []string{"sync"}, errUtils.ErrInvalidSyncTarget},
		{"not an s3 url", []string{"sync", env.workingDir, "gs://backups/music"}, errUtils.ErrInvalidSyncTarget},
		{"missing source", []string{"sync", filepath.Join(env.workingDir, "missing"), "s3://backups/music"}, errUtils.ErrInvalidSyncSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, env.args(tt.args...)...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, errUtils.ExitUsage, errUtils.GetExitCode(err))
		})
	}
}

func TestSync_Help(t *testing.T) {
	stdout, _, err := execute(t, "sync", "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "--verify-only")
	assert.Contains(t, stdout, "--upload-only")
	assert.Contains(t, stdout, "s3://BUCKET/PREFIX")
}
