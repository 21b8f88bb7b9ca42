package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/sla-timekeeper/internal/auth"
	"github.com/spec-kit/sla-timekeeper/internal/domain"
)

var (
	tokenUser   string
	tokenTenant string
	tokenRole   string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUser == "" || tokenTenant == "" {
			return fmt.Errorf("--user and --tenant are required")
		}
		role := domain.Role(tokenRole)
		switch role {
		case domain.RoleAdmin, domain.RoleAgent, domain.RoleCustomer:
		default:
			return fmt.Errorf("unknown role %q", tokenRole)
		}

		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
		token, expiresAt, err := tokens.GenerateToken(domain.Actor{UserID: tokenUser, TenantID: tokenTenant, Role: role})
		if err != nil {
			return err
		}
		fmt.Println(token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (sub claim)")
	tokenCmd.Flags().StringVar(&tokenTenant, "tenant", "", "tenant id")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleAgent), "admin, agent or customer")
}
