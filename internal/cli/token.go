package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"skuforge/internal/config"
	"skuforge/internal/domain/auth"
)

// TokenCmd issues a session token for local testing of the API.
func TokenCmd() *cobra.Command {
	var shop, user string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token signed with AUTH_API_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envDir)
			if err != nil {
				return err
			}
			if cfg.Auth.APIKey == "" || cfg.Auth.APISecret == "" {
				return errors.New("AUTH_API_KEY and AUTH_API_SECRET must be set")
			}
			if shop == "" {
				shop = cfg.Shopify.ShopDomain
			}
			if shop == "" {
				return errors.New("--shop is required")
			}

			v := auth.NewSessionValidator(auth.SessionConfig{APIKey: cfg.Auth.APIKey, APISecret: cfg.Auth.APISecret})
			token, err := v.IssueToken(shop, user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&shop, "shop", "", "shop domain (defaults to SHOPIFY_SHOP_DOMAIN)")
	cmd.Flags().StringVar(&user, "user", "1", "staff user id")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
