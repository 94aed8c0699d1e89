package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/schoolops/campus/cmd/campusctl/internal/config"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	loginUsername string
	passwordStdin bool
	forceLogin    bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the back office",
	Long: `Exchanges a username and password for a session and stores it locally.

Prompts for missing values unless --non-interactive is set. In scripts, pass
--username and pipe the password with --password-stdin:

  echo "$PASSWORD" | campusctl auth login --username admin --password-stdin

When a session already exists, login does nothing unless --force is given.`,
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

		if !forceLogin {
			if _, err := provider.Require(cmd.Context(), guard.Policy().LoginRoute); errors.Is(err, client.ErrAlreadyAuthenticated) {
				pterm.Info.Printf("%s (use --force to log in as someone else)\n", err)
				return nil
			}
		}

		username, password, err := readCredentials(cmd, cfg.Settings.NonInteractive)
		if err != nil {
			return err
		}

		ctx, cancel := client.EnsureTimeout(cmd.Context(), cfg.Settings.RequestTimeout)
		defer cancel()

		session, err := ctrl.Login(ctx, username, password)
		if err != nil {
			return explainLoginError(err)
		}

		pterm.Success.Printf("Logged in as %s\n", displayName(session))
		pterm.Info.Printf("Roles: %s\n", formatRoles(session))
		if !session.ExpiresAt.IsZero() {
			pterm.Info.Printf("Session expires at: %s\n", session.ExpiresAt.Local().Format(time.RFC1123))
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
	loginCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	loginCmd.Flags().BoolVar(&forceLogin, "force", false, "Log in even when a session already exists")
}

func readCredentials(cmd *cobra.Command, nonInteractive bool) (string, string, error) {
	username := strings.TrimSpace(loginUsername)
	if username == "" {
		if nonInteractive {
			return "", "", errors.New("--username is required in non-interactive mode")
		}
		var err error
		username, err = pterm.DefaultInteractiveTextInput.Show("Username")
		if err != nil {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
	}

	if passwordStdin {
		password, err := readLine(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return username, password, nil
	}
	if nonInteractive {
		return "", "", errors.New("--password-stdin is required in non-interactive mode")
	}
	password, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	return username, password, nil
}

func readLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", nil
	}
	return strings.TrimRight(scanner.Text(), "\r\n"), nil
}

// explainLoginError keeps credential rejections and outages apart so the
// user knows whether to retype or retry.
func explainLoginError(err error) error {
	var loginErr *sdk.LoginError
	switch {
	case errors.Is(err, sdk.ErrCredentialsRequired):
		return errors.New("login failed: username and password are required")
	case errors.Is(err, sdk.ErrSuperseded):
		return errors.New("login cancelled: the session changed while logging in")
	case errors.Is(err, sdk.ErrInvalidCredentials):
		if errors.As(err, &loginErr) && loginErr.Reason != "" {
			return fmt.Errorf("login rejected: %s", loginErr.Reason)
		}
		return errors.New("login rejected: invalid username or password")
	case errors.Is(err, sdk.ErrUnavailable):
		return fmt.Errorf("login failed: server unavailable, try again later (%w)", err)
	default:
		return fmt.Errorf("login failed: %w", err)
	}
}

func displayName(s *sdk.Session) string {
	if s.FullName != "" {
		return fmt.Sprintf("%s (%s)", s.FullName, s.Username)
	}
	return s.Username
}

func formatRoles(s *sdk.Session) string {
	ids := s.RoleIDs()
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
