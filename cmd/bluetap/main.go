package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bluetaphq/bluetap/internal/auth"
	"github.com/bluetaphq/bluetap/internal/config"
	"github.com/bluetaphq/bluetap/internal/version"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "bluetap",
		Short: "BlueBubbles webhook channel service",
		Long:  "bluetap receives BlueBubbles webhooks, gates senders by policy, and relays conversations to an agent endpoint.",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (default: ./config.toml or $CONFIG_PATH)")

	root.AddCommand(serveCmd())
	root.AddCommand(accountsCmd())
	root.AddCommand(pairingCmd())
	root.AddCommand(adminTokenCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv("CONFIG_PATH")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
				return fmt.Errorf("auth.jwt_secret is required to serve")
			}
			runServe(cfg)
			return nil
		},
	}
}

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Account tooling",
	}
	cmd.AddCommand(accountsValidateCmd())
	return cmd
}

func accountsValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an accounts file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var accounts []config.Account
			if file != "" {
				loaded, err := config.LoadAccounts(file)
				if err != nil {
					return fmt.Errorf("load accounts: %w", err)
				}
				accounts = loaded
			} else {
				cfg, err := config.Load(resolveConfigPath())
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				accounts = cfg.Accounts
			}
			if err := config.ValidateAccounts(accounts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d account(s) valid\n", len(accounts))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "accounts YAML file (default: accounts from the main config)")
	return cmd
}

func adminTokenCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Mint an admin API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
				return fmt.Errorf("auth.jwt_secret is required")
			}
			token, expiresAt, err := auth.GenerateToken(user, cfg.Auth.JWTSecret, cfg.Auth.TTL())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "admin", "subject claim for the token")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetInfo())
		},
	}
}
