package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cedar-backup/cback/cmd"
	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
)

func main() {
	// Set up signal handling so an interrupted run still reports its status.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Error("Backup interrupted.", "signal", sig.String())
		// Use errUtils.OsExit to allow test interception.
		errUtils.OsExit(errUtils.ExitInterrupted)
	}()

	errUtils.OsExit(run())
}

// run executes the command and returns the process exit code.
func run() int {
	err := cmd.Execute()
	if err == nil {
		return errUtils.ExitOK
	}

	errUtils.LogError(err)

	exitCode := errUtils.GetExitCode(err)
	log.Debug("Exiting with exit code", "code", exitCode)
	return exitCode
}
