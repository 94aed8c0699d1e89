package role

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the role catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := sdkClient(cmd.Context())
		if err != nil {
			return err
		}

		roles, err := api.ListRoles(cmd.Context())
		if err != nil {
			return client.ExplainError("list roles", err)
		}
		if len(roles) == 0 {
			fmt.Println("No roles found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
		for _, r := range roles {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", r.ID, r.Name, r.Description)
		}
		_ = w.Flush()

		return nil
	},
}
