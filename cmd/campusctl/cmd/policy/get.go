package policy

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/schoolops/campus/cmd/campusctl/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the effective access policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		guard, err := cfg.ClientProvider.Guard()
		if err != nil {
			return err
		}

		source := "built-in"
		if cfg.Settings.PolicyFile != "" {
			source = cfg.Settings.PolicyFile
		}
		pterm.Printf("Source: %s\n", source)
		pterm.Println()

		out, err := yaml.Marshal(guard.Policy())
		if err != nil {
			return fmt.Errorf("failed to encode policy: %w", err)
		}
		pterm.Print(string(out))
		return nil
	},
}
