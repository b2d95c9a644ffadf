package errors

import (
	"errors"
	"fmt"
)

// Graph errors.
var (
	ErrEmptyGraphName  = errors.New("graph name must be non-empty")
	ErrEmptyVertexName = errors.New("vertex name must be non-empty")
	ErrDuplicateVertex = errors.New("vertex already exists")
	ErrVertexNotFound  = errors.New("vertex not found")
	ErrDependencyCycle = errors.New("graph contains a cycle")
)

// Action ordering and selection errors.
var (
	ErrInvalidOrderMode         = errors.New("invalid action order mode")
	ErrUnknownDependency        = errors.New("dependency refers to an unknown action")
	ErrDependencyRecursion      = errors.New("action dependencies contain a cycle")
	ErrNoActions                = errors.New("no actions specified")
	ErrInvalidAction            = errors.New("invalid action")
	ErrNonCombinableAction      = errors.New("action must be executed alone")
	ErrUnknownExtensionFunction = errors.New("extension function is not registered")
	ErrDuplicateExtension       = errors.New("extension function is already registered")
	ErrMissingActionFunction    = errors.New("action has no function to execute")
)

// Execution errors.
var (
	ErrHookFailed          = errors.New("hook command failed")
	ErrCommandNotStarted   = errors.New("command could not be started")
	ErrCommandFailed       = errors.New("command failed")
	ErrEmptyCommand        = errors.New("command line is empty")
	ErrManagedActionFailed = errors.New("managed action failed on peer")
	ErrLockHeld            = errors.New("another backup run holds the lock")
)

// Configuration errors.
var (
	ErrConfigNotFound     = errors.New("configuration file not found")
	ErrReadConfig         = errors.New("failed to read configuration")
	ErrUnmarshalConfig    = errors.New("failed to unmarshal configuration")
	ErrInvalidConfig      = errors.New("configuration is invalid")
	ErrMissingSection     = errors.New("required configuration section is missing")
	ErrInvalidHookType    = errors.New("hook type must be pre or post")
	ErrInvalidCollectMode = errors.New("invalid collect mode")
	ErrInvalidArchiveMode = errors.New("invalid archive mode")
	ErrInvalidStartingDay = errors.New("invalid starting day")
)

// Peer, media and extension errors.
var (
	ErrStagePeer          = errors.New("failed to stage peer")
	ErrInvalidMediaType   = errors.New("invalid media type")
	ErrMediaFull          = errors.New("data does not fit on media")
	ErrMediaCheckFailed   = errors.New("media consistency check failed")
	ErrItemTooLarge       = errors.New("item is larger than the media capacity")
	ErrUnknownAlgorithm   = errors.New("unknown spanning algorithm")
	ErrUploadFailed       = errors.New("upload failed")
	ErrUploadLimit        = errors.New("upload exceeds the configured size limit")
	ErrCapacityExceeded   = errors.New("media capacity threshold exceeded")
	ErrDatabaseDumpFailed = errors.New("database dump failed")
	ErrRepositoryDump     = errors.New("subversion repository dump failed")
	ErrMailboxBackup      = errors.New("mailbox backup failed")
	ErrSplitFailed        = errors.New("failed to split staged file")
	ErrStreamUnsupported  = errors.New("command runner cannot stream output")
	ErrInvalidSyncTarget  = errors.New("sync target must look like s3://bucket/prefix")
	ErrInvalidSyncSource  = errors.New("sync source must be a directory")
	ErrSyncVerifyFailed   = errors.New("bucket contents do not match the source directory")
	ErrUnsafeFilename     = errors.New("file name is not valid UTF-8")
)

// Built-in action errors.
var (
	ErrStagingDirNotFound  = errors.New("no usable staging directory found")
	ErrArchiveFailed       = errors.New("failed to archive collected data")
	ErrMediaNotInitialized = errors.New("media has not been initialized")
)

// ExitCodeError carries the exit status of an external command.
type ExitCodeError struct {
	Code int
}

func (e ExitCodeError) Error() string {
	return fmt.Sprintf("subcommand exited with code %d", e.Code)
}
