package errors

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	log "github.com/cedar-backup/cback/pkg/logger"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, ExitOK},
		{"plain error", errors.New("boom"), ExitGeneral},
		{"attached code", WithExitCode(errors.New("bad config"), ExitConfig), ExitConfig},
		{"wrapped attached code", fmt.Errorf("run: %w", WithExitCode(ErrNoActions, ExitUsage)), ExitUsage},
		{"subprocess status", ExitCodeError{Code: 7}, 7},
		{"attached code wins over subprocess status", WithExitCode(fmt.Errorf("%w: %w", ErrHookFailed, ExitCodeError{Code: 3}), ExitExecution), ExitExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestWithExitCode_Nil(t *testing.T) {
	assert.NoError(t, WithExitCode(nil, ExitConfig))
}

func TestWithExitCode_PreservesIdentity(t *testing.T) {
	err := WithExitCode(fmt.Errorf("%w: collect", ErrInvalidAction), ExitUsage)
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, "invalid action: collect", err.Error())
}

func TestHints(t *testing.T) {
	err := WithHint(ErrDependencyRecursion, "remove one of the run_before or run_after entries")
	assert.ErrorIs(t, err, ErrDependencyRecursion)
	assert.Equal(t, "hint: remove one of the run_before or run_after entries\n", FormatHints(err))
	assert.Empty(t, FormatHints(ErrNoActions))
	assert.NoError(t, WithHint(nil, "unused"))
}

func TestLogError(t *testing.T) {
	original := log.Default()
	defer log.SetDefault(original)

	var buf bytes.Buffer
	log.SetDefault(log.NewCbackLogger(&buf))

	LogError(WithHint(ErrLockHeld, "wait for the running backup to finish"))
	assert.Contains(t, buf.String(), ErrLockHeld.Error())
	assert.Contains(t, buf.String(), "wait for the running backup to finish")

	buf.Reset()
	LogError(nil)
	assert.Empty(t, buf.String())
}

func TestExit(t *testing.T) {
	original := OsExit
	defer func() { OsExit = original }()

	var got int
	OsExit = func(code int) { got = code }

	Exit(ExitInterrupted)
	assert.Equal(t, ExitInterrupted, got)
}
