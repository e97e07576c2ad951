package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/propdesk/propdesk/internal/auth/session"
	"github.com/propdesk/propdesk/internal/authorization"
	"github.com/propdesk/propdesk/internal/client"
	"github.com/propdesk/propdesk/internal/client/output"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close() }()

		service := NewWhoamiService(rt.Client, rt.Session, NewOutputWrapper())
		return service.Whoami(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

// TokenReader reads the current access token
type TokenReader interface {
	Token() (string, error)
}

// WhoamiService shows who the stored session belongs to
type WhoamiService struct {
	client client.Interface
	tokens TokenReader
	output OutputInterface
	now    func() time.Time
}

// NewWhoamiService creates a new WhoamiService with the provided dependencies
func NewWhoamiService(apiClient client.Interface, tokens TokenReader, outputter OutputInterface) *WhoamiService {
	return &WhoamiService{client: apiClient, tokens: tokens, output: outputter, now: time.Now}
}

// Whoami asks the backend for the current user. The request refreshes an
// expired token on the way, so the claims are read afterwards.
func (s *WhoamiService) Whoami(ctx context.Context) error {
	token, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to read stored session: %w", err)
	}
	if token == "" {
		return fmt.Errorf("not signed in, run 'propdesk login'")
	}

	user, err := s.client.Me(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	s.output.KeyValue("ID", user.ID)
	s.output.KeyValue("Email", s.output.Bold(user.Email))
	if user.Name != "" {
		s.output.KeyValue("Name", user.Name)
	}
	if user.Role != "" {
		s.output.KeyValue("Role", authorization.Label(user.Role))
	}
	if user.TenantID != "" {
		s.output.KeyValue("Tenant", user.TenantID)
	}

	token, err = s.tokens.Token()
	if err != nil || token == "" {
		return nil
	}
	claims, err := session.ParseClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return nil
	}
	left := claims.ExpiresAt.Sub(s.now())
	if left <= 0 {
		s.output.Warningf("Access token expired, it is refreshed on the next request")
		return nil
	}
	s.output.KeyValue("Token expires in", output.Duration(left.Round(time.Second)))
	return nil
}
