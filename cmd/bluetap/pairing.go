package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bluetaphq/bluetap/internal/channel"
	"github.com/bluetaphq/bluetap/internal/config"
	"github.com/bluetaphq/bluetap/internal/pairing"
)

func pairingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairing",
		Short: "Inspect and approve pairing requests",
	}
	cmd.AddCommand(pairingListCmd())
	cmd.AddCommand(pairingApproveCmd())
	cmd.AddCommand(pairingRevokeCmd())
	return cmd
}

// openPairingStore connects to the same Postgres store the running service
// uses. The in-memory fallback is per-process, so the CLI requires a DSN.
func openPairingStore(ctx context.Context) (pairing.Store, func(), error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		return nil, nil, fmt.Errorf("postgres.dsn is required for pairing commands")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pairing.Migrate(pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pairing.NewPostgresStore(pool), pool.Close, nil
}

func pairingListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list <account>",
		Short: "List pairing requests for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && status != string(pairing.StatusPending) && status != string(pairing.StatusApproved) {
				return fmt.Errorf("unknown status %q", status)
			}
			store, closeStore, err := openPairingStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			requests, err := store.ListRequests(cmd.Context(), channel.TypeBlueBubbles.String(), args[0], pairing.Status(status))
			if err != nil {
				return err
			}
			if len(requests) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pairing requests")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-10s %-20s %s\n", "CODE", "STATUS", "CREATED", "SENDER")
			for _, req := range requests {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-10s %-20s %s\n",
					req.Code, req.Status, req.CreatedAt.Format("2006-01-02 15:04:05"), req.SenderID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending or approved)")
	return cmd
}

func pairingApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <account> <code>",
		Short: "Approve the pending request carrying a code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openPairingStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			req, err := store.Approve(cmd.Context(), channel.TypeBlueBubbles.String(), args[0], args[1])
			if err != nil {
				if errors.Is(err, pairing.ErrNotFound) {
					return fmt.Errorf("no pending request with code %s", args[1])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "paired %s\n", req.SenderID)
			return nil
		},
	}
}

func pairingRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <account> <sender>",
		Short: "Remove a sender's request or approval",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openPairingStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Revoke(cmd.Context(), channel.TypeBlueBubbles.String(), args[0], args[1]); err != nil {
				if errors.Is(err, pairing.ErrNotFound) {
					return fmt.Errorf("no request for sender %s", args[1])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[1])
			return nil
		},
	}
}
