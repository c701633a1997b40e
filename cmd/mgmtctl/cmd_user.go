package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mender-qa/mgmtctl/pkg/cli"
	"github.com/mender-qa/mgmtctl/pkg/model"
)

var userCmd = &cobra.Command{
	Use:     "user",
	Aliases: []string{"users"},
	Short:   "Manage management users",
	Long: `Manage management users of the user administration service.

Examples:
  mgmtctl user list
  mgmtctl user create tester@example.com --user-password s3cret-pass
  mgmtctl user delete <user-id>`,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		users, err := r.Client().Users.List(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(users)
		}
		t := cli.NewTableTo(cmd.OutOrStdout(), "ID", "EMAIL")
		for _, u := range users {
			t.Row(u.ID, u.Email)
		}
		t.Flush()
		return nil
	},
}

var newUserPassword string

var userCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if newUserPassword == "" {
			return fmt.Errorf("--user-password is required")
		}
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		id, err := r.Client().Users.Create(cmd.Context(), args[0], newUserPassword)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s created: %s\n", bold(args[0]), id)
		return nil
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		u, err := r.Client().Users.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(u)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cli.DotPad("ID", 16), u.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cli.DotPad("Email", 16), u.Email)
		return nil
	},
}

var newUserEmail string

var userUpdateCmd = &cobra.Command{
	Use:   "update <user-id>",
	Short: "Change the email or password of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		update := model.UserUpdate{Email: newUserEmail, Password: newUserPassword}
		if err := r.Client().Users.Update(cmd.Context(), args[0], update); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s updated\n", args[0])
		return nil
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := r.Client().Users.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s deleted\n", args[0])
		return nil
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&newUserPassword, "user-password", "", "Password of the new user")
	userUpdateCmd.Flags().StringVar(&newUserEmail, "email", "", "New email")
	userUpdateCmd.Flags().StringVar(&newUserPassword, "user-password", "", "New password")

	userCmd.AddCommand(userListCmd, userShowCmd, userCreateCmd, userUpdateCmd, userDeleteCmd)
	addOutputFlags(userCmd)
}
