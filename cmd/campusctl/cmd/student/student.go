package student

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/schoolops/campus/cmd/campusctl/internal/config"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/spf13/cobra"
)

// StudentCmd is the parent command for student operations
var StudentCmd = &cobra.Command{
	Use:   "student",
	Short: "Browse and manage students",
	Long:  `Commands for listing, viewing and deleting student records.`,
}

func init() {
	StudentCmd.AddCommand(listCmd)
	StudentCmd.AddCommand(getCmd)
	StudentCmd.AddCommand(deleteCmd)
}

// openScreen authorizes routeID and returns the session with an API client.
func openScreen(ctx context.Context, routeID string) (*sdk.Session, *sdk.Client, *client.Provider, error) {
	provider := config.MustFromContext(ctx).ClientProvider
	session, err := provider.Require(ctx, routeID)
	if err != nil {
		return nil, nil, nil, err
	}
	api, err := provider.SDKClient(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return session, api, provider, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid student id %q", arg)
	}
	return id, nil
}

// confirm asks before a destructive call. Non-interactive runs must pass --yes.
func confirm(ctx context.Context, prompt string, yes bool) error {
	if yes {
		return nil
	}
	if config.MustFromContext(ctx).Settings.NonInteractive {
		return errors.New("refusing to delete without --yes in non-interactive mode")
	}
	ok, err := pterm.DefaultInteractiveConfirm.Show(prompt)
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if !ok {
		return errors.New("aborted")
	}
	return nil
}
