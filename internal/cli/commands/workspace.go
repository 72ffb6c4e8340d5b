package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/ctesplit/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewWorkspaceCommand creates the workspace command group.
func NewWorkspaceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces",
		Long: `Manage workspaces. Each workspace owns a private pool of sub-queries and
an optional saved main query. Commands use the workspace selected with
--workspace (default: "default"), creating it on first use.`,
	}

	cmd.AddCommand(newWorkspaceCreateCommand())
	cmd.AddCommand(newWorkspaceListCommand())
	cmd.AddCommand(newWorkspaceClearCommand())
	cmd.AddCommand(newWorkspaceRemoveCommand())

	return cmd
}

func newWorkspaceCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws, err := cmdCtx.Engine.CreateWorkspace(args[0])
			if err != nil {
				return fmt.Errorf("failed to create workspace: %w", err)
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(output.WorkspaceInfo{Name: ws.Name, ID: ws.ID, UpdatedAt: ws.UpdatedAt.Format(time.RFC3339)})
			}
			r.Success(fmt.Sprintf("created workspace %s (%s)", ws.Name, ws.ID))
			return nil
		},
	}
}

func newWorkspaceListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List workspaces",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			eng := cmdCtx.Engine
			workspaces, err := eng.Workspaces()
			if err != nil {
				return err
			}

			infos := make([]output.WorkspaceInfo, 0, len(workspaces))
			for _, ws := range workspaces {
				entities, err := eng.Entities(ws.ID)
				if err != nil {
					return err
				}
				infos = append(infos, output.WorkspaceInfo{
					Name:      ws.Name,
					ID:        ws.ID,
					MainName:  ws.MainName,
					HasMain:   ws.MainSQL != "",
					Entities:  len(entities),
					UpdatedAt: ws.UpdatedAt.Format(time.RFC3339),
				})
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(infos)
			}
			if len(infos) == 0 {
				r.Muted("No workspaces.")
				return nil
			}

			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				name := info.Name
				if info.Name == cmdCtx.Cfg.Workspace {
					name += " *"
				}
				main := "-"
				if info.HasMain {
					main = info.MainName
				}
				rows = append(rows, []string{name, fmt.Sprintf("%d", info.Entities), main, info.UpdatedAt})
			}
			r.Header(1, "Workspaces")
			r.Table([]string{"Name", "Sub-queries", "Main", "Updated"}, rows)
			return nil
		},
	}
}

func newWorkspaceClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [name]",
		Short: "Remove every sub-query and the saved main query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ref := cmdCtx.Cfg.Workspace
			if len(args) > 0 {
				ref = args[0]
			}
			if err := cmdCtx.Engine.Clear(ref); err != nil {
				return fmt.Errorf("failed to clear workspace: %w", err)
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(output.ResultOutput{Status: "cleared", Message: ref})
			}
			r.Success("cleared workspace " + ref)
			return nil
		},
	}
}

func newWorkspaceRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"delete"},
		Short:   "Delete a workspace and its sub-queries",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Engine.DeleteWorkspace(args[0]); err != nil {
				return fmt.Errorf("failed to delete workspace: %w", err)
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(output.ResultOutput{Status: "deleted", Message: args[0]})
			}
			r.Success("deleted workspace " + args[0])
			return nil
		},
	}
}
