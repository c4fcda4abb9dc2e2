package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	transport "jcert-quiz-service/internal/transport/http"
)

// NewTokenCmd mints a bearer token for local development.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID int64
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user-id must be positive")
			}
			cfg, _, err := loadRuntime(*configPath)
			if err != nil {
				return err
			}
			auth, err := transport.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AdminRole)
			if err != nil {
				return err
			}
			token, err := auth.Issue(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "numeric user id to embed as the subject")
	cmd.Flags().StringVar(&role, "role", "", "role claim, e.g. admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
