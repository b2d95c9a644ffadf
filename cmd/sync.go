package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/extend"
)

// syncCmd mirrors a directory into an S3 bucket outside of a backup run
var syncCmd = &cobra.Command{
	Use:   "sync SOURCE s3://BUCKET/PREFIX",
	Short: "Mirror a directory into an Amazon S3 bucket",
	Long: `This command uploads every file under SOURCE that is missing from the bucket
or differs from it, removes objects that have no local file, and then checks
that each local file is in the bucket with the same size. Credentials and the
default region come from the usual AWS configuration.`,
	Example: "cback sync /home/backup/music s3://example-bucket/music\ncback sync --verify-only /srv/archive s3://example-bucket",
	Args:    cobra.ArbitraryArgs,
	RunE:    runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return errUtils.WithExitCode(
			errUtils.WithHint(fmt.Errorf("%w: sync takes a source directory and a target URL", errUtils.ErrInvalidSyncTarget), "cback sync /path/to/dir s3://bucket/prefix"),
			errUtils.ExitUsage,
		)
	}
	if _, _, err := extend.ParseS3URL(args[1]); err != nil {
		return errUtils.WithExitCode(err, errUtils.ExitUsage)
	}

	closer, err := setupLogging(cmd)
	if err != nil {
		return errUtils.WithExitCode(err, errUtils.ExitLogging)
	}
	defer closer.Close()

	opts := extend.SyncOptions{}
	opts.VerifyOnly, _ = cmd.Flags().GetBool("verify-only")
	opts.UploadOnly, _ = cmd.Flags().GetBool("upload-only")
	opts.IgnoreWarnings, _ = cmd.Flags().GetBool("ignore-warnings")
	opts.Region, _ = cmd.Flags().GetString("region")

	result, err := extend.NewSyncer().Sync(cmd.Context(), args[0], args[1], opts)
	if err != nil {
		if errors.Is(err, errUtils.ErrInvalidSyncSource) || errors.Is(err, errUtils.ErrUnsafeFilename) {
			return errUtils.WithExitCode(err, errUtils.ExitUsage)
		}
		return errUtils.WithExitCode(err, errUtils.ExitExecution)
	}
	if !opts.VerifyOnly {
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d files, %d unchanged, deleted %d objects.\n", result.Uploaded, result.Unchanged, result.Deleted)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Verified %s against %s.\n", args[1], args[0])
	return nil
}

func init() {
	syncCmd.Flags().Bool("verify-only", false, "Only check that the bucket matches the directory")
	syncCmd.Flags().Bool("upload-only", false, "Upload new and changed files without deleting anything from the bucket")
	syncCmd.Flags().Bool("ignore-warnings", false, "Upload files whose names are not valid UTF-8")
	syncCmd.Flags().String("region", "", "AWS region of the bucket")
	RootCmd.AddCommand(syncCmd)
}
