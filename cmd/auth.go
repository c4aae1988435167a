package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/honganh1206/stargazer/credential"
)

func LoginHandler(cmd *cobra.Command, args []string, e *env) error {
	provider, _ := cmd.Flags().GetString("provider")
	code, _ := cmd.Flags().GetString("code")
	if code == "" {
		return errors.New("--code is required")
	}

	result, err := e.client.Login(cmd.Context(), provider, code)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := e.store.SetToken(result.AccessToken); err != nil {
		return err
	}

	subject, _ := credential.Subject(result.AccessToken)
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (token expires %s)\n", subject, result.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func LogoutHandler(cmd *cobra.Command, args []string, e *env) error {
	if err := e.store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func WhoamiHandler(cmd *cobra.Command, args []string, e *env) error {
	token, err := e.store.BearerToken()
	if err != nil {
		if errors.Is(err, credential.ErrUnauthenticated) {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
			return nil
		}
		return err
	}

	subject, err := credential.Subject(token)
	if err != nil {
		return err
	}
	expiry, err := credential.Expiry(token)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (expires in %s)\n", subject, time.Until(expiry).Round(time.Minute))
	return nil
}

func newAuthCmds() []*cobra.Command {
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange an OAuth authorization code for an access token",
		Args:  cobra.NoArgs,
		RunE:  withEnv(LoginHandler),
	}
	loginCmd.Flags().String("provider", "kakao", "OAuth provider")
	loginCmd.Flags().String("code", "", "Authorization code returned by the provider")

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE:  withEnv(LogoutHandler),
	}

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE:  withEnv(WhoamiHandler),
	}

	return []*cobra.Command{loginCmd, logoutCmd, whoamiCmd}
}
