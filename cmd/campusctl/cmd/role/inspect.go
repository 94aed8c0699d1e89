package role

import (
	"fmt"
	"slices"

	"github.com/schoolops/campus/cmd/campusctl/internal/config"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [role]",
	Short: "Show the screens and actions a role unlocks",
	Long: `Evaluates the local access policy for a role. Accepts "ADMIN" or
"ROLE_ADMIN". No login is needed; the server still has the final word.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		guard, err := cfg.ClientProvider.Guard()
		if err != nil {
			return err
		}

		role := sdk.NormalizeRoleID(args[0])
		if role == "" {
			return fmt.Errorf("role must not be empty")
		}

		fmt.Printf("Role: %s\n", role)
		fmt.Println("Screens:")
		for _, r := range grantedRoutes(guard.Policy(), role) {
			fmt.Printf("  - %s\n", r)
		}
		fmt.Println("Actions:")
		for _, a := range grantedActions(guard.Policy(), role) {
			fmt.Printf("  - %s\n", a)
		}
		return nil
	},
}

// grantedRoutes lists the routes a session holding only role could open.
// Public-only routes are left out since a session never opens them.
func grantedRoutes(policy *sdk.Policy, role string) []string {
	var out []string
	for _, r := range policy.Routes {
		switch {
		case r.Access == sdk.AccessPublicOnly:
			continue
		case len(r.Roles) == 0 || slices.Contains(r.Roles, role):
			out = append(out, r.ID)
		}
	}
	return out
}

func grantedActions(policy *sdk.Policy, role string) []string {
	var out []string
	for _, a := range policy.Actions {
		if len(a.Roles) > 0 && !slices.Contains(a.Roles, role) {
			continue
		}
		if a.ProtectSelf {
			out = append(out, a.ID+" (not on own account)")
			continue
		}
		out = append(out, a.ID)
	}
	return out
}
