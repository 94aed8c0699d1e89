package auth

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pterm/pterm"
	"github.com/schoolops/campus/cmd/campusctl/internal/config"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display the current session and the screens it can open",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		provider := cfg.ClientProvider

		ctrl, err := provider.Controller(cmd.Context())
		if err != nil {
			return err
		}
		guard, err := provider.Guard()
		if err != nil {
			return err
		}

		session := ctrl.CurrentSession()
		pterm.DefaultSection.Println("Session")
		if session == nil {
			if ctrl.State() == sdk.StateExpired {
				pterm.Warning.Println("Session expired; run `campusctl auth login`")
			} else {
				pterm.Info.Println("Not logged in")
			}
			return nil
		}

		pterm.Info.Printf("User: %s\n", displayName(session))
		if session.Email != "" {
			pterm.Info.Printf("Email: %s\n", session.Email)
		}
		pterm.Info.Printf("Roles: %s\n", formatRoles(session))
		if session.IsActive {
			pterm.Info.Println("Account: active")
		} else {
			pterm.Warning.Println("Account: inactive")
		}
		if session.ExpiresAt.IsZero() {
			pterm.Info.Println("Expires: unknown")
		} else {
			pterm.Info.Printf("Expires: %s (in %s)\n",
				session.ExpiresAt.Local().Format(time.RFC1123),
				time.Until(session.ExpiresAt).Round(time.Minute))
		}

		pterm.DefaultSection.Println("Screens")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCREEN\tPATH\tROLES\tACCESS")
		for _, route := range guard.Routes() {
			roles := "any"
			if len(route.Roles) > 0 {
				roles = strings.Join(route.Roles, ", ")
			}
			if route.Access != sdk.AccessAuthenticated {
				roles = string(route.Access)
			}
			access := "no"
			if guard.CanAccessRoute(session, route.ID) {
				access = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", route.ID, route.Path, roles, access)
		}
		w.Flush()
		return nil
	},
}
