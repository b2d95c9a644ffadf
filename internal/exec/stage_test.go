package exec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/peer"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/staging"
)

func readyPeer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "etc.tar.gz"), "etc")
	writeFile(t, filepath.Join(dir, peer.CollectIndicator), "")
	return dir
}

func stageConfig(t *testing.T) *schema.Configuration {
	t.Helper()
	return &schema.Configuration{
		Options: &schema.OptionsConfig{StartingDay: "monday", WorkingDir: t.TempDir()},
		Stage:   &schema.StageConfig{TargetDir: t.TempDir()},
	}
}

func TestStage_LocalPeers(t *testing.T) {
	setNow(t, wednesday)
	cfg := stageConfig(t)
	ready := readyPeer(t)
	notReady := t.TempDir()
	cfg.Stage.Local = []schema.LocalPeer{
		{Name: "alpha", CollectDir: ready},
		{Name: "beta", CollectDir: notReady},
	}

	require.NoError(t, (&stageAction{}).Execute(context.Background(), "", &schema.RunOptions{}, cfg))

	daily := staging.DailyDir(cfg.Stage.TargetDir, wednesday)
	assert.FileExists(t, filepath.Join(daily.Path, "alpha", "etc.tar.gz"))
	assert.NoFileExists(t, filepath.Join(daily.Path, "alpha", peer.CollectIndicator))
	assert.FileExists(t, filepath.Join(ready, peer.StageIndicator))
	assert.DirExists(t, filepath.Join(daily.Path, "beta"))
	assert.NoFileExists(t, filepath.Join(notReady, peer.StageIndicator))
	assert.FileExists(t, filepath.Join(daily.Path, peer.StageIndicator))
}

func TestStage_FallsBackToPeersSection(t *testing.T) {
	setNow(t, wednesday)
	cfg := stageConfig(t)
	cfg.Peers = &schema.PeersConfig{Local: []schema.LocalPeer{{Name: "gamma", CollectDir: readyPeer(t)}}}

	require.NoError(t, (&stageAction{}).Execute(context.Background(), "", nil, cfg))
	assert.FileExists(t, filepath.Join(staging.DailyDir(cfg.Stage.TargetDir, wednesday).Path, "gamma", "etc.tar.gz"))
}

func TestStage_RemotePeer(t *testing.T) {
	setNow(t, wednesday)
	cfg := stageConfig(t)
	cfg.Options.BackupUser = "backup"
	cfg.Options.RcpCommand = "/usr/bin/scp -B"
	cfg.Stage.Remote = []schema.RemotePeer{{Name: "db1", CollectDir: "/var/backup/collect"}}
	peerDir := filepath.Join(staging.DailyDir(cfg.Stage.TargetDir, wednesday).Path, "db1")

	ctrl := gomock.NewController(t)
	mockRunner := runner.NewMockCommandRunner(ctrl)
	gomock.InOrder(
		mockRunner.EXPECT().
			Run(gomock.Any(), "/usr/bin/scp", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, args []string) (*runner.CommandResult, error) {
				assert.Equal(t, "backup@db1:/var/backup/collect/cback.collect", args[1])
				writeFile(t, args[2], "")
				return &runner.CommandResult{}, nil
			}),
		mockRunner.EXPECT().
			Run(gomock.Any(), "/usr/bin/scp", []string{"-B", "backup@db1:/var/backup/collect/*", peerDir}).
			DoAndReturn(func(context.Context, string, []string) (*runner.CommandResult, error) {
				writeFile(t, filepath.Join(peerDir, "home.tar.gz"), "home")
				writeFile(t, filepath.Join(peerDir, peer.CollectIndicator), "")
				return &runner.CommandResult{}, nil
			}),
		mockRunner.EXPECT().
			Run(gomock.Any(), "/usr/bin/scp", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, args []string) (*runner.CommandResult, error) {
				assert.Equal(t, "backup@db1:/var/backup/collect/cback.stage", args[2])
				return &runner.CommandResult{}, nil
			}),
	)

	require.NoError(t, (&stageAction{runner: mockRunner}).Execute(context.Background(), "", nil, cfg))
	assert.FileExists(t, filepath.Join(peerDir, "home.tar.gz"))
	assert.NoFileExists(t, filepath.Join(peerDir, peer.CollectIndicator))
}

func TestStage_FailedPeerDoesNotStopTheRun(t *testing.T) {
	setNow(t, wednesday)
	cfg := stageConfig(t)
	cfg.Stage.Remote = []schema.RemotePeer{{Name: "db1", CollectDir: "/collect", IgnoreFailure: schema.FailureModeDaily}}
	cfg.Stage.Local = []schema.LocalPeer{{Name: "alpha", CollectDir: readyPeer(t)}}

	ctrl := gomock.NewController(t)
	mockRunner := runner.NewMockCommandRunner(ctrl)
	mockRunner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).Return(&runner.CommandResult{ExitCode: 1}, nil)

	buf := captureLog(t)
	require.NoError(t, (&stageAction{runner: mockRunner}).Execute(context.Background(), "", nil, cfg))
	assert.Contains(t, buf.String(), "db1")
	assert.FileExists(t, filepath.Join(staging.DailyDir(cfg.Stage.TargetDir, wednesday).Path, "alpha", "etc.tar.gz"))
}

func TestStage_ExistingDailyDir(t *testing.T) {
	setNow(t, wednesday)
	cfg := stageConfig(t)
	daily := staging.DailyDir(cfg.Stage.TargetDir, wednesday)
	require.NoError(t, os.MkdirAll(daily.Path, 0o755))

	buf := captureLog(t)
	require.NoError(t, (&stageAction{}).Execute(context.Background(), "", nil, cfg))
	assert.Contains(t, buf.String(), "already existed")
}

func TestStage_Errors(t *testing.T) {
	assert.ErrorIs(t, (&stageAction{}).Execute(context.Background(), "", nil, &schema.Configuration{}), errUtils.ErrMissingSection)
}

func TestIgnoreFailure(t *testing.T) {
	tests := []struct {
		mode        string
		full        bool
		startOfWeek bool
		ignored     bool
	}{
		{"", false, false, false},
		{schema.FailureModeNone, true, true, false},
		{schema.FailureModeAll, false, false, true},
		{schema.FailureModeDaily, false, false, true},
		{schema.FailureModeDaily, true, false, false},
		{schema.FailureModeDaily, false, true, false},
		{schema.FailureModeWeekly, false, false, false},
		{schema.FailureModeWeekly, true, false, true},
		{schema.FailureModeWeekly, false, true, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ignored, ignoreFailure(tt.mode, tt.full, tt.startOfWeek), "%q full=%v start=%v", tt.mode, tt.full, tt.startOfWeek)
	}
}
