package cmd

import (
	"fmt"
	"os"

	"github.com/schoolops/campus/cmd/campusctl/cmd/auth"
	"github.com/schoolops/campus/cmd/campusctl/cmd/console"
	"github.com/schoolops/campus/cmd/campusctl/cmd/policy"
	"github.com/schoolops/campus/cmd/campusctl/cmd/role"
	"github.com/schoolops/campus/cmd/campusctl/cmd/student"
	"github.com/schoolops/campus/cmd/campusctl/cmd/user"
	authstore "github.com/schoolops/campus/cmd/campusctl/internal/auth"
	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/schoolops/campus/cmd/campusctl/internal/config"
	"github.com/schoolops/campus/cmd/campusctl/internal/logging"
	"github.com/spf13/cobra"
)

var (
	serverURL      string
	logLevel       string
	logFormat      string
	sessionStore   string
	policyFile     string
	nonInteractive bool

	// provider is closed by Execute whether or not the command succeeded.
	provider *client.Provider
)

var rootCmd = &cobra.Command{
	Use:   "campusctl",
	Short: "campusctl - student back-office client",
	Long: `campusctl is the command-line client for the student management back office.
Log in once, then list and manage students, users and roles. Screens are gated
by the roles of your session; the server remains the final authority.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("server") {
			settings.ServerURL = serverURL
		}
		if flags.Changed("log-level") {
			settings.LogLevel = logLevel
		}
		if flags.Changed("log-format") {
			settings.LogFormat = logFormat
		}
		if flags.Changed("session-store") {
			settings.SessionStore = sessionStore
		}
		if flags.Changed("policy") {
			settings.PolicyFile = policyFile
		}
		if flags.Changed("non-interactive") {
			settings.NonInteractive = nonInteractive
		}
		if err := settings.Validate(); err != nil {
			return err
		}

		stateDir, err := config.StateDir()
		if err != nil {
			return err
		}

		logger := logging.NewLogger(logging.ParseLevel(settings.LogLevel), settings.LogFormat)
		provider = client.NewProvider(client.Options{
			ServerURL:  settings.ServerURL,
			Timeout:    settings.RequestTimeout,
			PolicyFile: settings.PolicyFile,
			Logger:     logger,
			Storage: authstore.Options{
				Backend:        settings.SessionStore,
				Dir:            stateDir,
				File:           settings.SessionFile,
				SQLiteDSN:      settings.SQLiteDSN,
				RedisAddr:      settings.RedisAddr,
				RedisPassword:  settings.RedisPassword,
				RedisDB:        settings.RedisDB,
				RedisKeyPrefix: settings.RedisKeyPrefix,
				RedisTTL:       settings.RedisTTL,
			},
		})

		cfg := &config.GlobalConfig{
			Settings:       settings,
			Logger:         logger,
			ClientProvider: provider,
		}
		cmd.SetContext(config.InjectConfig(cmd.Context(), cfg))
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes the command line and releases session storage afterwards,
// including when the command itself failed.
func run() error {
	err := rootCmd.Execute()
	if closeErr := closeProvider(); closeErr != nil {
		fmt.Fprintln(os.Stderr, closeErr)
	}
	return err
}

func closeProvider() error {
	if provider == nil {
		return nil
	}
	p := provider
	provider = nil
	return p.Close()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080/api", "Back-office API base URL (CAMPUS_SERVER)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error (CAMPUS_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json (CAMPUS_LOG_FORMAT)")
	rootCmd.PersistentFlags().StringVar(&sessionStore, "session-store", "file", "Session storage: file, sqlite, redis or memory (CAMPUS_SESSION_STORE)")
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "Access policy YAML overriding the built-in table (CAMPUS_POLICY_FILE)")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Disable interactive prompts (CAMPUS_NON_INTERACTIVE)")

	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(student.StudentCmd)
	rootCmd.AddCommand(user.UserCmd)
	rootCmd.AddCommand(role.RoleCmd)
	rootCmd.AddCommand(policy.PolicyCmd)
	rootCmd.AddCommand(console.ConsoleCmd)
}
