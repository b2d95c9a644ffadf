package cmd

import (
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
)

// orderCmd prints the order in which actions run
var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Print the execution order of all actions",
	Long: `This command prints the index of every built-in and extension action, as
computed from the extensions section of the configuration. Actions run in
ascending index order.`,
	Example: "cback order --config /etc/cback.yaml",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		config, err := loadConfig(configPath, false)
		if err != nil {
			return errUtils.WithExitCode(err, errUtils.ExitConfig)
		}
		indexMap, err := action.BuildIndexMap(config.Extensions)
		if err != nil {
			return errUtils.WithExitCode(err, errUtils.ExitConfig)
		}
		_, err = cmd.OutOrStdout().Write([]byte(renderOrder(indexMap) + "\n"))
		return err
	},
}

// renderOrder formats an index map as a table sorted by index, then name.
func renderOrder(indexMap map[string]int) string {
	names := lo.Keys(indexMap)
	sort.Slice(names, func(i, j int) bool {
		if indexMap[names[i]] != indexMap[names[j]] {
			return indexMap[names[i]] < indexMap[names[j]]
		}
		return names[i] < names[j]
	})
	rows := lo.Map(names, func(name string, _ int) []string {
		return []string{strconv.Itoa(indexMap[name]), name}
	})

	t := table.New().
		Headers("INDEX", "ACTION").
		Rows(rows...).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderRow(false).
		BorderColumn(false).
		BorderHeader(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 2, 0, 0)
			}
			return lipgloss.NewStyle().Padding(0, 2, 0, 0)
		})
	return t.String()
}

func init() {
	RootCmd.AddCommand(orderCmd)
}
