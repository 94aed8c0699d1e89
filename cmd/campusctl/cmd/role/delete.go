package role

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/schoolops/campus/cmd/campusctl/internal/config"
	"github.com/spf13/cobra"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a role from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid role id %q", args[0])
		}

		ctx := cmd.Context()
		cfg := config.MustFromContext(ctx)
		session, err := cfg.ClientProvider.Require(ctx, "roles-admin")
		if err != nil {
			return err
		}
		if err := cfg.ClientProvider.RequireAction(session, "role:delete", 0); err != nil {
			return err
		}
		api, err := cfg.ClientProvider.SDKClient(ctx)
		if err != nil {
			return err
		}

		if !deleteYes {
			if cfg.Settings.NonInteractive {
				return errors.New("refusing to continue without --yes in non-interactive mode")
			}
			ok, err := pterm.DefaultInteractiveConfirm.Show(fmt.Sprintf("Delete role %d?", id))
			if err != nil {
				return fmt.Errorf("failed to read confirmation: %w", err)
			}
			if !ok {
				return errors.New("aborted")
			}
		}

		if err := api.DeleteRole(ctx, id); err != nil {
			return client.ExplainError(fmt.Sprintf("delete role %d", id), err)
		}
		pterm.Success.Printf("Deleted role %d\n", id)
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
}
