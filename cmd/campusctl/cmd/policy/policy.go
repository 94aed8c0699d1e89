package policy

import (
	"github.com/spf13/cobra"
)

// PolicyCmd is the parent command for access policy operations.
var PolicyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the access policy",
	Long: `Commands for inspecting and checking the table that decides which roles may
open each screen and perform each action. Override the built-in table with
--policy or CAMPUS_POLICY_FILE.`,
}

func init() {
	PolicyCmd.AddCommand(getCmd)
	PolicyCmd.AddCommand(validateCmd)
	PolicyCmd.AddCommand(complianceCmd)
}
