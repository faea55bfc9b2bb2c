package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdb/internal/packs"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

func newPackCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Manage feature packs",
	}
	cmd.AddCommand(
		newPackListCmd(a),
		newPackAvailableCmd(a),
		newPackInstallCmd(a),
		newPackEnableCmd(a),
		newPackDisableCmd(a),
		newPackRemoveCmd(a),
		newPackSyncCmd(a),
		newPackWatchCmd(a),
		newPackTabsCmd(a),
	)
	return cmd
}

func newPackListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			infos, err := sys.Packs.Packs(ctx)
			if err != nil {
				return err
			}
			rows := make([][]string, len(infos))
			for i, p := range infos {
				rows[i] = []string{
					p.Name, p.Label(), orDash(p.Version), strconv.FormatBool(p.Enabled),
					strconv.Itoa(p.TypeCount), joinOrDash(p.Dependencies), joinOrDash(p.Dependents),
				}
			}
			return a.printTable(infos,
				[]string{"PACK", "NAME", "VERSION", "ENABLED", "TYPES", "DEPENDS ON", "REQUIRED BY"}, rows)
		},
	}
}

func newPackAvailableCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List bundles that can be installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := a.system(a.ctx(cmd))
			if err != nil {
				return err
			}
			bundles, loadErr := sys.Packs.Available()
			manifests := make([]types.PackManifest, len(bundles))
			rows := make([][]string, len(bundles))
			for i, b := range bundles {
				manifests[i] = b.Manifest
				rows[i] = []string{b.Name(), orDash(b.Manifest.Version), joinOrDash(b.Manifest.Dependencies), joinOrDash(b.Labels())}
			}
			if err := a.printTable(manifests, []string{"PACK", "VERSION", "DEPENDS ON", "TYPES"}, rows); err != nil {
				return err
			}
			return loadErr
		},
	}
}

func newPackInstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "install <pack>...",
		Short: "Install or upgrade packs from the store directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			var results []*packs.InstallResult
			var rows [][]string
			for _, name := range args {
				res, err := sys.Packs.Install(ctx, name)
				if err != nil {
					return err
				}
				results = append(results, res)
				rows = append(rows, []string{res.Pack, res.Status, orDash(res.Version), orDash(res.PreviousVersion), joinOrDash(res.Types)})
			}
			return a.printTable(results, []string{"PACK", "STATUS", "VERSION", "PREVIOUS", "TYPES"}, rows)
		},
	}
}

func newPackEnableCmd(a *app) *cobra.Command {
	return packStateCmd(a, "enable", "Enable an installed pack", "Enabled", (*packs.Manager).Enable)
}

func newPackDisableCmd(a *app) *cobra.Command {
	return packStateCmd(a, "disable", "Disable a pack", "Disabled", (*packs.Manager).Disable)
}

func newPackRemoveCmd(a *app) *cobra.Command {
	return packStateCmd(a, "remove", "Remove an installed pack and its files", "Removed", (*packs.Manager).Remove)
}

// packStateCmd builds enable, disable and remove, which share a shape.
func packStateCmd(a *app, use, short, done string, op func(*packs.Manager, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <pack>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			if err := op(sys.Packs, ctx, args[0]); err != nil {
				return err
			}
			return a.printMessage(map[string]string{"pack": args[0], "action": use}, "%s %s", done, args[0])
		},
	}
}

// syncRow is the JSON shape of one pack sync result.
type syncRow struct {
	Pack   string `json:"pack"`
	Synced bool   `json:"synced"`
	Error  string `json:"error,omitempty"`
}

func newPackSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [pack...]",
		Short: "Sync installed bundles into the catalog",
		Long: "Sync records changed bundles from the packs directory in the catalog.\n" +
			"With no arguments every bundle is scanned, as on startup.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			if len(args) == 0 {
				sys, err := a.system(ctx)
				if err != nil {
					return err
				}
				report := sys.Startup
				var out []syncRow
				var rows [][]string
				for _, name := range report.Synced {
					out = append(out, syncRow{Pack: name, Synced: true})
					rows = append(rows, []string{name, "synced"})
				}
				for _, name := range report.Skipped {
					out = append(out, syncRow{Pack: name})
					rows = append(rows, []string{name, "up to date"})
				}
				failed := make([]string, 0, len(report.Failed))
				for name := range report.Failed {
					failed = append(failed, name)
				}
				sort.Strings(failed)
				for _, name := range failed {
					msg := report.Failed[name].Error()
					out = append(out, syncRow{Pack: name, Error: msg})
					rows = append(rows, []string{name, msg})
				}
				return a.printTable(out, []string{"PACK", "RESULT"}, rows)
			}

			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			var out []syncRow
			var rows [][]string
			var errs []error
			for _, name := range args {
				synced, err := sys.Packs.Sync(ctx, name)
				row := syncRow{Pack: name, Synced: synced}
				result := "up to date"
				if synced {
					result = "synced"
				}
				if err != nil {
					row.Error = err.Error()
					result = err.Error()
					errs = append(errs, err)
				}
				out = append(out, row)
				rows = append(rows, []string{name, result})
			}
			if err := a.printTable(out, []string{"PACK", "RESULT"}, rows); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
}

func newPackWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-sync bundles as their files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout(), "Watching %s\n", sys.Packs.PacksDir())
			return sys.Packs.Watch(ctx, debounce, func(name string, synced bool, err error) {
				switch {
				case err != nil:
					fmt.Fprintf(a.stdout(), "%s: %v\n", name, err)
				case synced:
					fmt.Fprintf(a.stdout(), "%s: synced\n", name)
				}
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", packs.DefaultDebounce, "quiet period before a changed bundle is synced")
	return cmd
}

func newPackTabsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tabs <label>",
		Short: "List the detail-view tabs enabled packs add to a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			tabs, err := sys.Packs.Tabs(ctx, args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, len(tabs))
			for i, tab := range tabs {
				rows[i] = []string{tab.ID, tab.Name, tab.Pack, orDash(tab.Template)}
			}
			return a.printTable(tabs, []string{"ID", "NAME", "PACK", "TEMPLATE"}, rows)
		},
	}
}
