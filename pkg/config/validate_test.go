package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/schema"
)

func intPtr(i int) *int { return &i }

func baseConfig() *schema.Configuration {
	return &schema.Configuration{
		Options: &schema.OptionsConfig{StartingDay: "monday", WorkingDir: "/var/lib/cback"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(cfg *schema.Configuration)
		problem string
	}{
		{
			name:    "missing options",
			modify:  func(cfg *schema.Configuration) { cfg.Options = nil },
			problem: "options section is required",
		},
		{
			name:    "bad starting day",
			modify:  func(cfg *schema.Configuration) { cfg.Options.StartingDay = "caturday" },
			problem: "starting_day 'caturday'",
		},
		{
			name:    "relative working dir",
			modify:  func(cfg *schema.Configuration) { cfg.Options.WorkingDir = "tmp" },
			problem: "options.working_dir 'tmp' must be an absolute path",
		},
		{
			name: "hook type",
			modify: func(cfg *schema.Configuration) {
				cfg.Options.Hooks = []schema.ActionHook{{Action: "collect", Type: "during", Command: "true"}}
			},
			problem: "type 'during' must be pre or post",
		},
		{
			name: "override without path",
			modify: func(cfg *schema.Configuration) {
				cfg.Options.Overrides = []schema.CommandOverride{{Command: "tar"}}
			},
			problem: "options.overrides[0].abs_path is required",
		},
		{
			name: "order mode",
			modify: func(cfg *schema.Configuration) {
				cfg.Extensions = &schema.ExtensionsConfig{OrderMode: "random"}
			},
			problem: "order_mode 'random'",
		},
		{
			name: "extension shadows a built-in",
			modify: func(cfg *schema.Configuration) {
				cfg.Extensions = &schema.ExtensionsConfig{Actions: []schema.ExtendedAction{{Name: "collect", Module: "m", Function: "f", Index: intPtr(1)}}}
			},
			problem: "extension 'collect' has the name of a built-in action",
		},
		{
			name: "duplicate extension",
			modify: func(cfg *schema.Configuration) {
				a := schema.ExtendedAction{Name: "dump", Module: "mysql", Function: "execute"}
				cfg.Extensions = &schema.ExtensionsConfig{Actions: []schema.ExtendedAction{a, a}}
			},
			problem: "extension 'dump' is configured more than once",
		},
		{
			name: "empty dependency",
			modify: func(cfg *schema.Configuration) {
				cfg.Extensions = &schema.ExtensionsConfig{
					OrderMode: "dependency",
					Actions: []schema.ExtendedAction{{
						Name: "dump", Module: "mysql", Function: "execute",
						Depends: &schema.ActionDependencies{RunBefore: []string{""}},
					}},
				}
			},
			problem: "extension 'dump' lists an empty dependency",
		},
		{
			name: "duplicate peer",
			modify: func(cfg *schema.Configuration) {
				cfg.Peers = &schema.PeersConfig{
					Local:  []schema.LocalPeer{{Name: "db1", CollectDir: "/collect"}},
					Remote: []schema.RemotePeer{{Name: "db1", CollectDir: "/collect"}},
				}
			},
			problem: "peers lists peer 'db1' more than once",
		},
		{
			name: "ignore failure mode",
			modify: func(cfg *schema.Configuration) {
				cfg.Stage = &schema.StageConfig{
					TargetDir: "/stage",
					Local:     []schema.LocalPeer{{Name: "db1", CollectDir: "/collect", IgnoreFailure: "sometimes"}},
				}
			},
			problem: "ignore_failure 'sometimes'",
		},
		{
			name:    "empty collect",
			modify:  func(cfg *schema.Configuration) { cfg.Collect = &schema.CollectConfig{TargetDir: "/collect"} },
			problem: "collect section lists no files or directories",
		},
		{
			name: "collect mode",
			modify: func(cfg *schema.Configuration) {
				cfg.Collect = &schema.CollectConfig{TargetDir: "/collect", Dirs: []schema.CollectDir{{AbsPath: "/etc", CollectMode: "hourly"}}}
			},
			problem: "hourly",
		},
		{
			name: "media type",
			modify: func(cfg *schema.Configuration) {
				cfg.Store = &schema.StoreConfig{Media: schema.MediaConfig{Type: "cdrw", Target: "/dev/sr0"}}
			},
			problem: "store.media.type",
		},
		{
			name: "retain days",
			modify: func(cfg *schema.Configuration) {
				cfg.Purge = &schema.PurgeConfig{Dirs: []schema.PurgeDir{{AbsPath: "/collect", RetainDays: -1}}}
			},
			problem: "retain_days must be zero or more",
		},
		{
			name:    "s3 bucket",
			modify:  func(cfg *schema.Configuration) { cfg.AmazonS3 = &schema.AmazonS3Config{} },
			problem: "amazons3.bucket is required",
		},
		{
			name: "capacity threshold",
			modify: func(cfg *schema.Configuration) {
				cfg.Capacity = &schema.CapacityConfig{MaxPercentage: 90, MinBytes: 100}
			},
			problem: "exactly one of max_percentage and min_bytes",
		},
		{
			name:    "database list",
			modify:  func(cfg *schema.Configuration) { cfg.PostgreSQL = &schema.DatabaseConfig{} },
			problem: "postgresql must set all or list databases",
		},
		{
			name:    "sysinfo compression",
			modify:  func(cfg *schema.Configuration) { cfg.SysInfo = &schema.SysInfoConfig{Compress: "zip"} },
			problem: "sysinfo.compress_mode 'zip'",
		},
		{
			name:    "empty subversion",
			modify:  func(cfg *schema.Configuration) { cfg.Subversion = &schema.SubversionConfig{} },
			problem: "subversion section lists no repositories",
		},
		{
			name: "subversion relative exclude",
			modify: func(cfg *schema.Configuration) {
				cfg.Subversion = &schema.SubversionConfig{RepositoryDirs: []schema.SubversionRepositoryDir{
					{AbsPath: "/srv/svn", RelativeExclude: []string{"/srv/svn/old"}},
				}}
			},
			problem: "relative exclude path '/srv/svn/old' is absolute",
		},
		{
			name: "mbox compression",
			modify: func(cfg *schema.Configuration) {
				cfg.Mbox = &schema.MboxConfig{Files: []schema.MboxFile{{AbsPath: "/var/mail/root", Compress: "bzip2"}}}
			},
			problem: "/var/mail/root.compress_mode 'bzip2'",
		},
		{
			name:    "split sizes",
			modify:  func(cfg *schema.Configuration) { cfg.Split = &schema.SplitConfig{SizeLimit: 1024} },
			problem: "split.size_limit and split.split_size must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.modify(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, errUtils.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(baseConfig()))
}

func TestCheck_ReportsEveryProblem(t *testing.T) {
	cfg := baseConfig()
	cfg.Options.StartingDay = ""
	cfg.Options.WorkingDir = ""
	cfg.Purge = &schema.PurgeConfig{Dirs: []schema.PurgeDir{{AbsPath: "relative", RetainDays: 1}}}

	problems := Check(cfg)
	assert.Len(t, problems, 3)
	for _, p := range problems {
		assert.ErrorIs(t, p, errUtils.ErrInvalidConfig)
	}
	assert.Len(t, Check(nil), 1)
}
