package policy

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check an access policy file before using it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := sdk.LoadPolicyFile(args[0])
		if err != nil {
			return err
		}
		if _, err := sdk.NewGuard(policy); err != nil {
			return fmt.Errorf("policy %s cannot be enforced: %w", args[0], err)
		}

		pterm.Success.Printf("Policy is valid: %d routes, %d actions\n", len(policy.Routes), len(policy.Actions))
		pterm.Info.Printf("Login route: %s, landing route: %s\n", policy.LoginRoute, policy.LandingRoute)
		return nil
	},
}
