package cli

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

func newLinkCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manage relationships between entities",
	}
	cmd.AddCommand(newLinkAddCmd(a), newLinkRemoveCmd(a), newLinkShowCmd(a))
	return cmd
}

func newLinkAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <source-label> <source-id> <REL_TYPE> <target-label> <target-id>",
		Short: "Connect two entities",
		Long:  "Add creates a relationship. Adding an existing relationship again is a no-op.",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			if err := sys.Engine.Connect(ctx, args[0], args[1], args[2], args[3], args[4]); err != nil {
				return err
			}
			return a.printMessage(relationship(args), "Connected %s -[%s]-> %s", args[1], args[2], args[4])
		},
	}
}

func newLinkRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <source-label> <source-id> <REL_TYPE> <target-label> <target-id>",
		Short: "Disconnect two entities",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			if _, err := sys.Engine.Disconnect(ctx, args[0], args[1], args[2], args[3], args[4]); err != nil {
				return err
			}
			return a.printMessage(relationship(args), "Disconnected %s -[%s]-> %s", args[1], args[2], args[4])
		},
	}
}

// linkView is the JSON shape of link show.
type linkView struct {
	Outgoing map[string][]types.Related `json:"outgoing"`
	Incoming map[string][]types.Related `json:"incoming"`
}

func newLinkShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <label> <id>",
		Short: "Show the relationships of an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			sys, err := a.system(ctx)
			if err != nil {
				return err
			}
			out, err := sys.Engine.OutgoingRelationships(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			in, err := sys.Engine.IncomingRelationships(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			var rows [][]string
			rows = appendRelated(rows, "out", out)
			rows = appendRelated(rows, "in", in)
			return a.printTable(linkView{Outgoing: out, Incoming: in},
				[]string{"DIRECTION", "RELATIONSHIP", "LABEL", "NAME", "ID"}, rows)
		},
	}
}

func appendRelated(rows [][]string, direction string, groups map[string][]types.Related) [][]string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, r := range groups[name] {
			rows = append(rows, []string{direction, name, r.Label, r.DisplayName, r.ID})
		}
	}
	return rows
}

func relationship(args []string) types.Relationship {
	return types.Relationship{
		SourceLabel: args[0],
		SourceID:    args[1],
		Type:        args[2],
		TargetLabel: args[3],
		TargetID:    args[4],
	}
}
