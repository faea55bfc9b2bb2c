package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdb/pkg/cmdb"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize cmdb storage",
		Long: "Create the configuration and data directories, the catalog database\n" +
			"and the feature pack directories. Safe to run more than once.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			for _, dir := range []string{cfg.DataDir, cfg.PacksDir, cfg.StoreDir} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create directory %s: %w", dir, err)
				}
			}
			if _, err := a.system(a.ctx(cmd), cmdb.WithoutStartup()); err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			return a.printMessage(map[string]string{
				"config_dir": a.configDir,
				"data_dir":   cfg.DataDir,
				"packs_dir":  cfg.PacksDir,
				"store_dir":  cfg.StoreDir,
			}, "cmdb initialized in %s", cfg.DataDir)
		},
	}
}
