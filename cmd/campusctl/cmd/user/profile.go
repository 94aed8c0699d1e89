package user

import (
	"fmt"

	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show your own account as the server sees it",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, api, _, err := openScreen(cmd.Context(), "profile")
		if err != nil {
			return err
		}

		u, err := api.GetUserByUsername(cmd.Context(), session.Username)
		if err != nil {
			return client.ExplainError("load profile", err)
		}

		fmt.Printf("ID:        %d\n", u.ID)
		fmt.Printf("Username:  %s\n", u.Username)
		fmt.Printf("Full name: %s\n", u.FullName)
		fmt.Printf("Email:     %s\n", u.Email)
		fmt.Printf("Roles:     %s\n", roleList(*u))
		fmt.Printf("Status:    %s\n", status(u.IsActive))
		return nil
	},
}
