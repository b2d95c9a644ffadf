package exec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
	"github.com/cedar-backup/cback/pkg/schema"
)

type resolverFunc func(module, function string) (action.Action, error)

func (f resolverFunc) Resolve(module, function string) (action.Action, error) {
	return f(module, function)
}

func validConfig(t *testing.T) *schema.Configuration {
	t.Helper()
	return &schema.Configuration{
		Reference: &schema.ReferenceConfig{Author: "ops"},
		Options:   &schema.OptionsConfig{StartingDay: "monday", WorkingDir: t.TempDir()},
		Collect: &schema.CollectConfig{
			TargetDir: t.TempDir(),
			Dirs:      []schema.CollectDir{{AbsPath: t.TempDir()}},
		},
		Stage: &schema.StageConfig{TargetDir: t.TempDir()},
		Store: &schema.StoreConfig{Media: schema.MediaConfig{Target: t.TempDir()}},
		Purge: &schema.PurgeConfig{Dirs: []schema.PurgeDir{{AbsPath: t.TempDir(), RetainDays: 7}}},
	}
}

func TestValidate_Valid(t *testing.T) {
	buf := captureLog(t)
	v := &validateAction{}
	require.NoError(t, v.Execute(context.Background(), "", nil, validConfig(t)))
	assert.Contains(t, buf.String(), "Configuration is valid.")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := validConfig(t)
	cfg.Reference = nil
	cfg.Collect.TargetDir = filepath.Join(t.TempDir(), "missing")
	cfg.Options.StartingDay = "someday"
	cfg.Extensions = &schema.ExtensionsConfig{Actions: []schema.ExtendedAction{{Name: "dump", Module: "mysql", Function: "execute"}}}

	buf := captureLog(t)
	v := &validateAction{extensions: resolverFunc(func(module, function string) (action.Action, error) {
		return nil, errUtils.ErrUnknownExtensionFunction
	})}
	err := v.Execute(context.Background(), "", nil, cfg)
	assert.ErrorIs(t, err, errUtils.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "4 problems")

	out := buf.String()
	assert.Contains(t, out, "reference section is required")
	assert.Contains(t, out, "does not exist")
	assert.Contains(t, out, "someday")
	assert.Contains(t, out, "extension 'dump'")
	assert.Contains(t, out, "Configuration is not valid.")
}

func TestValidate_Quiet(t *testing.T) {
	cfg := validConfig(t)
	cfg.Reference = nil
	buf := captureLog(t)

	v := &validateAction{quiet: true}
	assert.Error(t, v.Execute(context.Background(), "", nil, cfg))
	assert.Contains(t, buf.String(), "INFO")
	assert.NotContains(t, buf.String(), "ERRO")
}

func TestCheckDir(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, checkDir(dir, true))
	assert.ErrorContains(t, checkDir(filepath.Join(dir, "nope"), false), "does not exist")

	file := filepath.Join(dir, "file")
	writeFile(t, file, "")
	assert.ErrorContains(t, checkDir(file, false), "is not a directory")
}

func TestCheckOwner(t *testing.T) {
	assert.NoError(t, checkOwner("", ""))
	assert.Error(t, checkOwner("no-such-backup-user-cback", ""))
	assert.Error(t, checkOwner("", "no-such-backup-group-cback"))
}
