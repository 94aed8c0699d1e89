package student

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/spf13/cobra"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		session, api, provider, err := openScreen(cmd.Context(), "students")
		if err != nil {
			return err
		}
		if err := provider.RequireAction(session, "student:delete", 0); err != nil {
			return err
		}

		if err := confirm(cmd.Context(), fmt.Sprintf("Delete student %d?", id), deleteYes); err != nil {
			return err
		}

		if err := api.DeleteStudent(cmd.Context(), id); err != nil {
			return client.ExplainError(fmt.Sprintf("delete student %d", id), err)
		}
		pterm.Success.Printf("Deleted student %d\n", id)
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
}
