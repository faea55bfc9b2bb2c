package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

func newEntityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entity",
		Aliases: []string{"e"},
		Short:   "Create, read, update and delete entities",
	}
	cmd.AddCommand(
		newEntityCreateCmd(a),
		newEntityGetCmd(a),
		newEntityListCmd(a),
		newEntityUpdateCmd(a),
		newEntityDeleteCmd(a),
	)
	return cmd
}

func newEntityCreateCmd(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "create <label> [key=value...]",
		Short: "Create an entity",
		Long: `Create an entity of a registered type. Properties are given as key=value
pairs or as a JSON object with --data. Values that parse as JSON keep
their JSON type; anything else is a string.

Example:
  cmdb entity create Device name=srv1 rack_unit=12
  cmdb entity create Device --data '{"name": "srv1", "tags": ["prod"]}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProps(data, args[1:])
			if err != nil {
				return err
			}
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			ent, err := sys.Engine.Create(ctx, args[0], props)
			if err != nil {
				return err
			}
			return a.printEntity(ent)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "properties as a JSON object")
	return cmd
}

func newEntityGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <label> <id>",
		Short: "Get an entity by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			ent, err := sys.Engine.Get(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return a.printEntity(ent)
		},
	}
}

func newEntityListCmd(a *app) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list <label>",
		Short: "List entities of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			ents, err := sys.Engine.List(ctx, args[0], limit, offset)
			if err != nil {
				return err
			}
			columns := sys.Registry.GetMetadata(args[0]).Columns
			headers := append([]string{"ID"}, columns...)
			rows := make([][]string, len(ents))
			for i, ent := range ents {
				row := []string{ent.ID}
				for _, col := range columns {
					row = append(row, formatValue(ent.Properties[col]))
				}
				rows[i] = row
			}
			return a.printTable(ents, headers, rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default from config, max 200)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of entities to skip")
	return cmd
}

func newEntityUpdateCmd(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "update <label> <id> [key=value...]",
		Short: "Merge properties into an entity",
		Long:  "Update merges the given properties into the entity. Keys not given are left unchanged.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseProps(data, args[2:])
			if err != nil {
				return err
			}
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			ent, err := sys.Engine.Update(ctx, args[0], args[1], patch)
			if err != nil {
				return err
			}
			return a.printEntity(ent)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "properties as a JSON object")
	return cmd
}

func newEntityDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <label> <id>",
		Short: "Delete an entity and its relationships",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			res, err := sys.Engine.Delete(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return a.printMessage(res, "Deleted %s %s", res.Label, res.DisplayName)
		},
	}
}

func (a *app) printEntity(ent *types.Entity) error {
	if a.flags.jsonMode {
		return a.printJSON(ent)
	}
	rows := append([][]string{{"id", ent.ID}, {"label", ent.Label}}, propertyRows(ent.Properties)...)
	return a.printTable(ent, []string{"FIELD", "VALUE"}, rows)
}

// parseProps merges a JSON object with key=value pairs; pairs win.
func parseProps(data string, pairs []string) (map[string]any, error) {
	props := map[string]any{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &props); err != nil {
			return nil, fmt.Errorf("%w: --data must be a JSON object: %w", types.ErrInvalidPayload, err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, usageErrorf("invalid property %q (expected key=value)", pair)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		props[key] = parsed
	}
	return props, nil
}
