package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

func newTypeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type",
		Short: "Inspect and register entity types",
	}
	cmd.AddCommand(
		newTypeListCmd(a),
		newTypeShowCmd(a),
		newTypeRegisterCmd(a),
		newTypeUnregisterCmd(a),
		newTypeCategoriesCmd(a),
	)
	return cmd
}

func newTypeListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := a.system(a.ctx(cmd))
			if err != nil {
				return err
			}
			var defs []types.TypeDefinition
			var rows [][]string
			for _, label := range sys.Registry.KnownLabels() {
				def := sys.Registry.GetMetadata(label)
				defs = append(defs, def)
				rows = append(rows, []string{label, def.DisplayName, def.Category, orDash(def.OriginPack)})
			}
			return a.printTable(nonNilDefs(defs), []string{"LABEL", "NAME", "CATEGORY", "PACK"}, rows)
		},
	}
}

func newTypeShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <label>",
		Short: "Show a type definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := a.system(a.ctx(cmd))
			if err != nil {
				return err
			}
			label := args[0]
			if err := types.ValidateLabel(label); err != nil {
				return err
			}
			if !sys.Registry.Has(label) {
				return types.UnknownTypeError(label)
			}
			def := sys.Registry.GetMetadata(label)

			props := make([]string, len(def.Properties))
			for i, p := range def.Properties {
				props[i] = p.Name
				if len(p.Choices) > 0 {
					props[i] += " (" + strings.Join(p.Choices, "|") + ")"
				}
			}
			rels := make([]string, 0, len(def.Relationships))
			for name, spec := range def.Relationships {
				rels = append(rels, name+" -> "+spec.Target)
			}
			sort.Strings(rels)

			rows := [][]string{
				{"label", def.Label},
				{"name", def.DisplayName},
				{"description", def.Description},
				{"category", def.Category},
				{"pack", orDash(def.OriginPack)},
				{"properties", joinOrDash(props)},
				{"required", joinOrDash(def.Required)},
				{"relationships", joinOrDash(rels)},
				{"columns", joinOrDash(def.Columns)},
			}
			return a.printTable(def, []string{"FIELD", "VALUE"}, rows)
		},
	}
}

func newTypeRegisterCmd(a *app) *cobra.Command {
	var file, label string
	cmd := &cobra.Command{
		Use:   "register --file <definition.yaml>",
		Short: "Register an ad-hoc type from a YAML or JSON definition",
		Long: `Register reads one type definition and registers it outside any feature
pack. The definition is persisted and survives restarts.

Example definition:
  label: Rack
  display_name: Rack
  category: Hardware
  properties: [name, location]
  required: [name]
  relationships:
    LOCATED_IN:
      target: Site`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return usageErrorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read definition: %w", err)
			}
			var def types.TypeDefinition
			if err := yaml.Unmarshal(data, &def); err != nil {
				return fmt.Errorf("%w: parse definition: %w", types.ErrInvalidPayload, err)
			}
			if label != "" {
				def.Label = label
			}

			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			if err := sys.Packs.RegisterType(ctx, def); err != nil {
				return err
			}
			return a.printMessage(sys.Registry.GetMetadata(def.Label), "Registered type %s", def.Label)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "definition file (YAML or JSON)")
	cmd.Flags().StringVar(&label, "label", "", "label, overriding the one in the file")
	return cmd
}

func newTypeUnregisterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unregister <label>",
		Short: "Remove a type from the registry and the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			if err := sys.Packs.UnregisterType(ctx, args[0]); err != nil {
				return err
			}
			return a.printMessage(map[string]string{"unregistered": args[0]}, "Unregistered type %s", args[0])
		},
	}
}

func newTypeCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List types grouped by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := a.system(a.ctx(cmd))
			if err != nil {
				return err
			}
			cats := sys.Registry.Categories()
			names := make([]string, 0, len(cats))
			for name := range cats {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, len(names))
			for i, name := range names {
				rows[i] = []string{name, strings.Join(cats[name], ", ")}
			}
			return a.printTable(cats, []string{"CATEGORY", "TYPES"}, rows)
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func nonNilDefs(defs []types.TypeDefinition) []types.TypeDefinition {
	if defs == nil {
		return []types.TypeDefinition{}
	}
	return defs
}
