package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/propdesk/propdesk/internal/auth/session"
	"github.com/propdesk/propdesk/internal/authorization"
	"github.com/propdesk/propdesk/internal/client"
	"github.com/propdesk/propdesk/internal/client/output"
	"github.com/propdesk/propdesk/internal/constants"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Long: `Sign in to the property workspace. The access token and the refresh cookie
are stored locally so that later commands reuse the session.`,
	Example: `  propdesk login --email property.manager@example.com
  PROPDESK_PASSWORD=... propdesk login --email owner@example.com`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().String("email", "", "Account email (prompted when omitted)")
	loginCmd.Flags().String("password", "", "Account password (prompted when omitted, or set PROPDESK_PASSWORD)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(constants.EnvPrefix + "_PASSWORD")
	}

	service := NewLoginService(rt.Client, NewOutputWrapper(), rt.Close)
	return service.Login(cmd.Context(), email, password)
}

func runLogout(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	service := NewLoginService(rt.Client, NewOutputWrapper(), rt.Jar.Clear)
	return service.Logout(cmd.Context())
}

// LoginService handles signing in and out
type LoginService struct {
	client  client.Interface
	output  OutputInterface
	persist func() error
	now     func() time.Time
}

// NewLoginService creates a new LoginService. persist is called after the
// session changed so that cookies outlive the process.
func NewLoginService(apiClient client.Interface, outputter OutputInterface, persist func() error) *LoginService {
	return &LoginService{
		client:  apiClient,
		output:  outputter,
		persist: persist,
		now:     time.Now,
	}
}

// Login signs in, prompting for whichever credential is missing.
func (s *LoginService) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		email = s.output.Prompt("Email")
	}
	if email == "" {
		return errors.New("email is required")
	}
	if password == "" {
		password = s.output.PromptSecret("Password")
	}
	if password == "" {
		return errors.New("password is required")
	}

	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("failed to sign in: %w", err)
	}
	if s.persist != nil {
		if err = s.persist(); err != nil {
			s.output.Warningf("Signed in, but the session could not be saved: %v", err)
		}
	}

	s.output.Successf("Signed in as %s", s.output.Bold(email))
	if claims, err := session.ParseClaims(resp.Value()); err == nil {
		s.printClaims(claims)
	}
	return nil
}

// Logout ends the session on the backend and locally.
func (s *LoginService) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	if s.persist != nil {
		if err := s.persist(); err != nil {
			return fmt.Errorf("failed to remove stored cookies: %w", err)
		}
	}
	s.output.Successf("Signed out")
	return nil
}

func (s *LoginService) printClaims(claims *session.Claims) {
	if claims.Role != "" {
		s.output.KeyValue("Role", authorization.Label(claims.Role))
	}
	if claims.TenantID != "" {
		s.output.KeyValue("Tenant", claims.TenantID)
	}
	if claims.ExpiresAt != nil {
		s.output.KeyValue("Token expires", claims.ExpiresAt.Local().Format(time.RFC1123)+
			" ("+output.Duration(claims.ExpiresAt.Sub(s.now()).Round(time.Second))+")")
	}
}
