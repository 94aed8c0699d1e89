package auth

import (
	"github.com/pterm/pterm"
	"github.com/schoolops/campus/cmd/campusctl/internal/config"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the stored session",
	Long:  `Clears the local session. No server call is made, so logout works offline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		ctrl, err := cfg.ClientProvider.Controller(cmd.Context())
		if err != nil {
			return err
		}

		wasLoggedIn := ctrl.IsAuthenticated()
		if err := ctrl.Logout(cmd.Context()); err != nil {
			pterm.Warning.Printf("Session forgotten, but the stored copy could not be removed: %v\n", err)
			return err
		}
		if wasLoggedIn {
			pterm.Success.Println("Logged out successfully")
		} else {
			pterm.Info.Println("Not logged in")
		}
		return nil
	},
}
