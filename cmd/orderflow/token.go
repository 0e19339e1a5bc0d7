package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/darkden-lab/orderflow/internal/auth"
	"github.com/darkden-lab/orderflow/internal/config"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

func newTokenCmd() *cobra.Command {
	var (
		userID       string
		role         string
		restaurantID string
		ttl          time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			svc := auth.NewJWTService(cfg.JWTSecret)
			if ttl > 0 {
				svc = svc.WithDuration(ttl)
			}
			signed, err := svc.GenerateToken(userID, fulfillment.Role(role), restaurantID)
			if err != nil {
				return fmt.Errorf("failed to mint token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "dev", "user id (sub claim)")
	cmd.Flags().StringVar(&role, "role", string(fulfillment.RoleOwner), "role: administrator, owner, manager, kitchen, waiter, cashier or client")
	cmd.Flags().StringVar(&restaurantID, "restaurant", "", "restaurant the staff member belongs to")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default 12h)")
	return cmd
}
