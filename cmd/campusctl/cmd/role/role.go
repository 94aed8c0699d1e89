package role

import (
	"context"

	"github.com/schoolops/campus/cmd/campusctl/internal/config"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/spf13/cobra"
)

// RoleCmd is the parent command for role operations
var RoleCmd = &cobra.Command{
	Use:   "role",
	Short: "Inspect roles and what they grant",
	Long:  `Commands for listing and deleting catalog roles and inspecting the screens and actions each role unlocks.`,
}

func init() {
	RoleCmd.AddCommand(listCmd)
	RoleCmd.AddCommand(inspectCmd)
	RoleCmd.AddCommand(exportCmd)
	RoleCmd.AddCommand(deleteCmd)
}

// sdkClient opens the roles screen and returns the API client.
func sdkClient(ctx context.Context) (*sdk.Client, error) {
	cfg := config.MustFromContext(ctx)
	if _, err := cfg.ClientProvider.Require(ctx, "roles-admin"); err != nil {
		return nil, err
	}
	return cfg.ClientProvider.SDKClient(ctx)
}
