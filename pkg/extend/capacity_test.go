package extend

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/media"
	"github.com/cedar-backup/cback/pkg/schema"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := log.Default()
	l := log.NewCbackLogger(&buf)
	l.SetLevel(log.DebugLevel)
	log.SetDefault(l)
	t.Cleanup(func() { log.SetDefault(previous) })
	return &buf
}

func capacityConfig(t *testing.T, limits schema.CapacityConfig) *schema.Configuration {
	t.Helper()
	return &schema.Configuration{
		Options:  &schema.OptionsConfig{},
		Store:    &schema.StoreConfig{Media: schema.MediaConfig{Type: schema.MediaTypeDirectory, Target: t.TempDir()}},
		Capacity: &limits,
	}
}

func fixedUsage(total, available uint64) usageFunc {
	return func(string) (uint64, uint64, error) { return total, available, nil }
}

func TestCapacity_Thresholds(t *testing.T) {
	tests := []struct {
		name      string
		limits    schema.CapacityConfig
		total     uint64
		available uint64
		exceeded  bool
	}{
		{"under percentage", schema.CapacityConfig{MaxPercentage: 80}, 1000, 500, false},
		{"over percentage", schema.CapacityConfig{MaxPercentage: 80}, 1000, 100, true},
		{"enough bytes", schema.CapacityConfig{MinBytes: 100}, 1000, 500, false},
		{"too few bytes", schema.CapacityConfig{MinBytes: 1000}, 1000, 500, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			c := &capacityCheck{usage: fixedUsage(tt.total, tt.available)}

			require.NoError(t, c.Execute(context.Background(), "", nil, capacityConfig(t, tt.limits)))
			if tt.exceeded {
				assert.Contains(t, buf.String(), errUtils.ErrCapacityExceeded.Error())
			} else {
				assert.NotContains(t, buf.String(), errUtils.ErrCapacityExceeded.Error())
			}
		})
	}
}

func TestCapacity_ChecksMedia(t *testing.T) {
	cfg := capacityConfig(t, schema.CapacityConfig{MaxPercentage: 50})
	cfg.Store.CheckMedia = true
	c := &capacityCheck{usage: fixedUsage(100, 100)}

	assert.ErrorIs(t, c.Execute(context.Background(), "", nil, cfg), errUtils.ErrMediaNotInitialized)

	w := media.NewDirectoryWriter(cfg.Store.Media.Target, 0)
	require.NoError(t, w.Initialize(context.Background(), media.LabelPrefix+" TEST"))
	assert.NoError(t, c.Execute(context.Background(), "", nil, cfg))
}

func TestCapacity_Errors(t *testing.T) {
	c := &capacityCheck{usage: func(string) (uint64, uint64, error) { return 0, 0, errors.New("statfs failed") }}
	assert.ErrorIs(t, c.Execute(context.Background(), "", nil, &schema.Configuration{Options: &schema.OptionsConfig{}}), errUtils.ErrMissingSection)
	assert.Error(t, c.Execute(context.Background(), "", nil, capacityConfig(t, schema.CapacityConfig{MinBytes: 1})))
}

func TestDiskUsage(t *testing.T) {
	total, available, err := diskUsage(t.TempDir())
	if err != nil {
		t.Skipf("disk usage unavailable: %v", err)
	}
	assert.Positive(t, total)
	assert.LessOrEqual(t, available, total)
}
