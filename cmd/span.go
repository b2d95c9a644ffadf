package cmd

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/knapsack"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/media"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/span"
)

// spanCmd splits staged data that does not fit on one disc across several
var spanCmd = &cobra.Command{
	Use:   "span",
	Short: "Split staged data across several discs",
	Long: `This command spans the daily staging directories that have not been stored
yet across as many discs as needed, using the media configured in the store
section. The capacity of the media is reduced by a cushion to allow for
filesystem overhead.`,
	Example: "cback span --algorithm best --cushion 3\ncback span --dry-run",
	Args:    cobra.NoArgs,
	RunE:    runSpan,
}

func runSpan(cmd *cobra.Command, args []string) error {
	closer, err := setupLogging(cmd)
	if err != nil {
		return errUtils.WithExitCode(err, errUtils.ExitLogging)
	}
	defer closer.Close()

	algorithm, _ := cmd.Flags().GetString("algorithm")
	alg, err := knapsack.Lookup(algorithm)
	if err != nil {
		return errUtils.WithExitCode(err, errUtils.ExitUsage)
	}

	configPath, _ := cmd.Flags().GetString("config")
	config, err := loadConfig(configPath, true)
	if err != nil {
		return errUtils.WithExitCode(err, errUtils.ExitConfig)
	}
	if config.Options == nil || config.Store == nil {
		return errUtils.WithExitCode(fmt.Errorf("%w: span needs the options and store sections", errUtils.ErrMissingSection), errUtils.ExitConfig)
	}
	writer, err := media.NewWriter(config.Store.Media, newCommandRunner(config, false))
	if err != nil {
		return errUtils.WithExitCode(err, errUtils.ExitConfig)
	}
	if writer.Capacity() <= 0 {
		return errUtils.WithExitCode(
			errUtils.WithHint(fmt.Errorf("%w: store media has no capacity", errUtils.ErrInvalidConfig), "set store.media.capacity to the size of one disc in bytes"),
			errUtils.ExitConfig,
		)
	}

	if err := spanDiscs(cmd, config, writer, algorithm, alg); err != nil {
		return errUtils.WithExitCode(err, errUtils.ExitExecution)
	}
	return nil
}

func spanDiscs(cmd *cobra.Command, config *schema.Configuration, writer media.Writer, algorithm string, alg knapsack.Algorithm) error {
	out := cmd.OutOrStdout()
	cushion, _ := cmd.Flags().GetFloat64("cushion")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	yes, _ := cmd.Flags().GetBool("yes")
	sourceDir := config.Store.SourceDir
	if sourceDir == "" && config.Stage != nil {
		sourceDir = config.Stage.TargetDir
	}

	idx, err := span.BuildIndex(sourceDir)
	if err != nil {
		return err
	}
	if len(idx.Dirs) == 0 {
		fmt.Fprintln(out, "Every daily staging directory has already been stored.")
		return nil
	}

	capacity := span.RealCapacity(writer.Capacity(), cushion)
	fmt.Fprintln(out, "Daily staging directories not yet written to disc:")
	for _, dir := range idx.Dirs {
		fmt.Fprintf(out, "   %s\n", dir)
	}
	fmt.Fprintf(out, "Total size: %s\n", humanize.IBytes(uint64(idx.Total)))
	fmt.Fprintf(out, "Capacity with a %.2f%% cushion: %s (at least %d discs)\n", cushion, humanize.IBytes(uint64(capacity)), idx.MinimumDiscs(capacity))

	discs, err := idx.Generate(capacity, alg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Using the %q algorithm the data fits on %d discs:\n", algorithm, len(discs))
	for i, d := range discs {
		fmt.Fprintf(out, "   Disc %d: %s\n", i+1, d)
	}
	if dryRun {
		return nil
	}

	w := &span.Writer{
		Media:     writer,
		Label:     media.BuildLabel(now()),
		CheckData: config.Store.CheckData,
	}
	if !yes {
		w.BeforeDisc = promptForDisc(cmd.InOrStdin(), out)
	}
	if err := w.Write(cmd.Context(), idx, discs); err != nil {
		return err
	}
	if err := idx.MarkStored(config.Options.BackupUser, config.Options.BackupGroup); err != nil {
		return err
	}
	log.Info("Completed writing all discs", "discs", len(discs), "dirs", len(idx.Dirs))
	return nil
}

// promptForDisc waits for the operator to load each disc.
func promptForDisc(in io.Reader, out io.Writer) func(n int) error {
	reader := bufio.NewReader(in)
	return func(n int) error {
		msg := lo.Ternary(n == 1, "Please place the first disc in your backup device.", "Please replace the disc in your backup device.")
		fmt.Fprintf(out, "%s\nPress return when ready.\n", msg)
		_, err := reader.ReadString('\n')
		return err
	}
}

func init() {
	spanCmd.Flags().StringP("algorithm", "a", knapsack.Worst, fmt.Sprintf("Fit algorithm, one of %v", knapsack.Names()))
	spanCmd.Flags().Float64("cushion", span.DefaultCushion, "Percentage of the media capacity kept free")
	spanCmd.Flags().Bool("dry-run", false, "Print the discs without writing them")
	spanCmd.Flags().BoolP("yes", "y", false, "Do not wait for a disc to be loaded before writing it")
	RootCmd.AddCommand(spanCmd)
}
