package policy

import (
	"fmt"
	"slices"

	"github.com/pterm/pterm"
	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/schoolops/campus/cmd/campusctl/internal/config"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/spf13/cobra"
)

var complianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Compare the policy's roles with the server's role catalog",
	Long: `Lists roles the policy grants access to that the server does not know, and
catalog roles the policy never mentions. Requires the roles screen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := config.MustFromContext(cmd.Context()).ClientProvider
		if _, err := provider.Require(cmd.Context(), "roles-admin"); err != nil {
			return err
		}
		guard, err := provider.Guard()
		if err != nil {
			return err
		}
		api, err := provider.SDKClient(cmd.Context())
		if err != nil {
			return err
		}

		catalog, err := api.ListRoles(cmd.Context())
		if err != nil {
			return client.ExplainError("list roles", err)
		}

		unknown, unused := compareRoles(guard.Policy(), catalog)
		if len(unknown) == 0 && len(unused) == 0 {
			pterm.Success.Println("Every policy role exists on the server and every server role is used.")
			return nil
		}

		table := pterm.TableData{{"ROLE", "PROBLEM"}}
		for _, r := range unknown {
			table = append(table, []string{r, "granted by the policy, missing from the server"})
		}
		for _, r := range unused {
			table = append(table, []string{r, "defined on the server, unused by the policy"})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()

		if len(unknown) > 0 {
			return fmt.Errorf("policy compliance failed: %d unknown role(s)", len(unknown))
		}
		return nil
	},
}

// compareRoles returns the policy roles absent from catalog and the catalog
// roles no rule mentions, both sorted.
func compareRoles(policy *sdk.Policy, catalog []sdk.CatalogRole) (unknown, unused []string) {
	referenced := map[string]bool{}
	for _, r := range policy.Routes {
		for _, role := range r.Roles {
			referenced[role] = true
		}
	}
	for _, a := range policy.Actions {
		for _, role := range a.Roles {
			referenced[role] = true
		}
	}

	known := map[string]bool{}
	for _, c := range catalog {
		id := sdk.NormalizeRoleID(c.Name)
		known[id] = true
		if !referenced[id] {
			unused = append(unused, id)
		}
	}
	for role := range referenced {
		if !known[role] {
			unknown = append(unknown, role)
		}
	}
	slices.Sort(unknown)
	slices.Sort(unused)
	return unknown, unused
}
