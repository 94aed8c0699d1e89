package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/schoolops/campus/cmd/campusctl/internal/config"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/spf13/cobra"
)

// UserCmd is the parent command for user account operations
var UserCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long:  `Commands for listing, searching, enabling, disabling and deleting user accounts.`,
}

func init() {
	UserCmd.AddCommand(listCmd)
	UserCmd.AddCommand(deleteCmd)
	UserCmd.AddCommand(toggleCmd)
	UserCmd.AddCommand(profileCmd)
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
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

func confirm(ctx context.Context, prompt string, yes bool) error {
	if yes {
		return nil
	}
	if config.MustFromContext(ctx).Settings.NonInteractive {
		return errors.New("refusing to continue without --yes in non-interactive mode")
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

func status(active bool) string {
	if active {
		return "active"
	}
	return "disabled"
}

func roleList(u sdk.User) string {
	ids := u.RoleIDs()
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ",")
}
