package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/cedar-backup/cback/pkg/extend"
	"github.com/cedar-backup/cback/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the cback version",
	Long:    `Print the cback version and platform, and optionally the registered extension functions.`,
	Example: "cback version",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "Cedar Backup %s on %s/%s\n", version.Version, runtime.GOOS, runtime.GOARCH); err != nil {
			return err
		}
		if listExtensions, _ := cmd.Flags().GetBool("extensions"); !listExtensions {
			return nil
		}
		for _, name := range extend.List() {
			if _, err := fmt.Fprintf(out, "  extension %s\n", name); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolP("extensions", "e", false, "Also list the registered extension functions")
	RootCmd.AddCommand(versionCmd)
}
