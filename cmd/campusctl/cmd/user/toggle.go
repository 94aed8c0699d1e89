package user

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/spf13/cobra"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle-status [id]",
	Short: "Enable or disable a user account",
	Long:  `Flips a user account between active and disabled. Your own account cannot be disabled.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		session, api, provider, err := openScreen(cmd.Context(), "users-admin")
		if err != nil {
			return err
		}
		if err := provider.RequireAction(session, "user:toggle-status", id); err != nil {
			return err
		}

		u, err := api.ToggleUserStatus(cmd.Context(), id)
		if err != nil {
			return client.ExplainError(fmt.Sprintf("toggle user %d", id), err)
		}
		pterm.Success.Printf("User %s is now %s\n", u.Username, status(u.IsActive))
		return nil
	},
}
