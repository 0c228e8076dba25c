package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"scrumboard/pkg/rbac"
	"scrumboard/pkg/util"
)

func tokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Session token helpers for local development",
	}
	cmd.AddCommand(tokenMintCmd(a))
	return cmd
}

func tokenMintCmd(a *app) *cobra.Command {
	var (
		claims util.SessionClaims
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Sign a session token with the configured secret",
		Long: `Sign a session token the API accepts, using jwt.secret and jwt.issuer.

Examples:
  boardctl token mint --sub=user_1 --org=org_1 --role=org:admin
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !rbac.IsKnownRole(claims.OrgRole) {
				return fmt.Errorf("unknown role %q", claims.OrgRole)
			}
			claims.Issuer = a.cfg.JWT.Issuer
			if claims.OrgSlug == "" {
				claims.OrgSlug = claims.OrgID
			}

			token, err := util.GenerateSessionToken(claims, a.cfg.JWT.Secret, ttl)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]any{"token": token}, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}

	cmd.Flags().StringVar(&claims.Subject, "sub", "", "User id")
	cmd.Flags().StringVar(&claims.OrgID, "org", "", "Organization id")
	cmd.Flags().StringVar(&claims.OrgSlug, "slug", "", "Organization slug (defaults to the id)")
	cmd.Flags().StringVar(&claims.OrgRole, "role", rbac.RoleMember, "Organization role")
	cmd.Flags().StringVar(&claims.Email, "email", "", "Email")
	cmd.Flags().StringVar(&claims.Name, "name", "", "Display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
