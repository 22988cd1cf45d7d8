package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/karlmjogila/swarmops/internal/domain"
	"github.com/spf13/cobra"
)

func newRoleCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage roles",
	}

	cmd.AddCommand(
		newRoleListCmd(app),
		newRoleCreateCmd(app),
		newRoleShowCmd(app),
		newRoleUpdateCmd(app),
		newRoleDeleteCmd(app),
	)

	return cmd
}

func newRoleListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured roles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			roles, err := app.roles.List(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, roles)
			}

			for _, role := range roles {
				marker := ""
				if role.Builtin {
					marker = "\tbuiltin"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s%s\n", role.Name, role.Model, role.Thinking, marker)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func newRoleCreateCmd(app *app) *cobra.Command {
	var (
		description  string
		model        string
		thinking     string
		instructions string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := domain.ThinkingLevel(thinking)
			if thinking != "" && !level.Valid() {
				return fmt.Errorf("invalid thinking level %q (low, medium, high)", thinking)
			}

			role, err := app.roles.Create(cmd.Context(), domain.RoleInput{
				Name:         args[0],
				Description:  description,
				Model:        model,
				Thinking:     level,
				Instructions: instructions,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created role %s (%s)\n", role.Name, role.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "role description")
	cmd.Flags().StringVar(&model, "model", "", "model identifier (defaults to "+domain.DefaultModel+")")
	cmd.Flags().StringVar(&thinking, "thinking", "", "thinking level: low, medium, or high")
	cmd.Flags().StringVar(&instructions, "instructions", "", "system instructions for the role")

	return cmd
}

func newRoleShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := app.roles.GetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, role)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "name:\t%s\n", role.Name)
			_, _ = fmt.Fprintf(out, "id:\t%s\n", role.ID)
			_, _ = fmt.Fprintf(out, "model:\t%s\n", role.Model)
			_, _ = fmt.Fprintf(out, "thinking:\t%s\n", role.Thinking)
			if role.Description != "" {
				_, _ = fmt.Fprintf(out, "description:\t%s\n", role.Description)
			}
			if role.Builtin {
				_, _ = fmt.Fprintln(out, "builtin:\ttrue")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func newRoleUpdateCmd(app *app) *cobra.Command {
	var (
		newName      string
		description  string
		model        string
		thinking     string
		instructions string
	)

	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Update a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := app.roles.GetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			patch := domain.RolePatch{}
			if cmd.Flags().Changed("name") {
				patch.Name = &newName
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("model") {
				patch.Model = &model
			}
			if cmd.Flags().Changed("thinking") {
				level := domain.ThinkingLevel(thinking)
				if !level.Valid() {
					return fmt.Errorf("invalid thinking level %q (low, medium, high)", thinking)
				}
				patch.Thinking = &level
			}
			if cmd.Flags().Changed("instructions") {
				patch.Instructions = &instructions
			}

			updated, err := app.roles.Update(cmd.Context(), role.ID, patch)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "updated role %s\n", updated.Name)
			return err
		},
	}

	cmd.Flags().StringVar(&newName, "name", "", "new role name")
	cmd.Flags().StringVar(&description, "description", "", "role description")
	cmd.Flags().StringVar(&model, "model", "", "model identifier")
	cmd.Flags().StringVar(&thinking, "thinking", "", "thinking level: low, medium, or high")
	cmd.Flags().StringVar(&instructions, "instructions", "", "system instructions for the role")

	return cmd
}

func newRoleDeleteCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := app.roles.GetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := app.roles.Delete(cmd.Context(), role.ID); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted role %s\n", role.Name)
			return err
		},
	}

	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
