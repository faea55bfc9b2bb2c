package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// dashboardRow is the JSON shape of one dashboard line.
type dashboardRow struct {
	Label    string `json:"label"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show entity counts per registered type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			counts, err := sys.Engine.Counts(ctx)
			if err != nil {
				return err
			}
			out := []dashboardRow{}
			var rows [][]string
			for _, label := range sys.Registry.KnownLabels() {
				def := sys.Registry.GetMetadata(label)
				out = append(out, dashboardRow{Label: label, Name: def.DisplayName, Category: def.Category, Count: counts[label]})
				rows = append(rows, []string{def.Category, label, def.DisplayName, strconv.Itoa(counts[label])})
			}
			return a.printTable(out, []string{"CATEGORY", "LABEL", "NAME", "COUNT"}, rows)
		},
	}
}
