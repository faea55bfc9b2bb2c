package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdb/pkg/cmdb"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Back up and restore the pack and type catalog as JSONL",
	}
	cmd.AddCommand(newCatalogExportCmd(a), newCatalogImportCmd(a))
	return cmd
}

func newCatalogExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write feature_packs.jsonl and type_definitions.jsonl to dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx, cmdb.WithoutStartup())
			if err != nil {
				return err
			}
			if err := sys.Catalog.ExportCatalog(ctx, args[0]); err != nil {
				return err
			}
			return a.printMessage(map[string]string{"dir": args[0]}, "Exported catalog to %s", args[0])
		},
	}
}

func newCatalogImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Load a catalog export and rebuild the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx, cmdb.WithoutStartup())
			if err != nil {
				return err
			}
			packCount, typeCount, err := sys.Catalog.ImportCatalog(ctx, args[0])
			if err != nil {
				return err
			}
			if err := sys.Packs.Rebuild(ctx); err != nil {
				return err
			}
			return a.printMessage(map[string]int{"packs": packCount, "types": typeCount},
				"Imported %d packs and %d types", packCount, typeCount)
		},
	}
}
