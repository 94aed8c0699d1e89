package user

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/spf13/cobra"
)

var listKeyword string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List or search user accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, api, _, err := openScreen(cmd.Context(), "users-admin")
		if err != nil {
			return err
		}

		var users []sdk.User
		if keyword := strings.TrimSpace(listKeyword); keyword != "" {
			users, err = api.SearchUsers(cmd.Context(), keyword)
		} else {
			users, err = api.ListUsers(cmd.Context())
		}
		if err != nil {
			return client.ExplainError("list users", err)
		}
		if len(users) == 0 {
			fmt.Println("No users found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tEMAIL\tROLES\tSTATUS")
		for _, u := range users {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.FullName, u.Email, roleList(u), status(u.IsActive))
		}
		_ = w.Flush()
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listKeyword, "keyword", "k", "", "Search by username, name or email")
}
