package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newCredentialsCommand(ctx *commandContext) *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage encrypted provider API keys",
	}

	credentialsCmd.AddCommand(newCredentialsSetCommand(ctx))
	credentialsCmd.AddCommand(newCredentialsCheckCommand(ctx))
	credentialsCmd.AddCommand(newCredentialsDeleteCommand(ctx))
	credentialsCmd.AddCommand(newCredentialsListCommand(ctx))
	return credentialsCmd
}

func newCredentialsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider>",
		Short: "Store an API key for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, keyVault, err := ctx.openVault()
			if err != nil {
				return err
			}
			provider := strings.ToLower(strings.TrimSpace(args[0]))
			if _, ok := cfg.ProviderConfig(provider); !ok {
				return fmt.Errorf("unknown provider %q", provider)
			}
			if provider == "local" {
				return errors.New("the local provider does not use an API key")
			}

			key, err := readSecret(cmd, fmt.Sprintf("API key for %s: ", provider))
			if err != nil {
				return err
			}
			if key == "" {
				return errors.New("no key entered")
			}

			if err := keyVault.Store(provider, key, vaultPassphrase(cfg)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored credential for %s.\n", provider)
			return nil
		},
	}
}

func newCredentialsCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <provider>",
		Short: "Verify a stored key decrypts on this machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, keyVault, err := ctx.openVault()
			if err != nil {
				return err
			}
			provider := strings.ToLower(strings.TrimSpace(args[0]))
			if err := keyVault.Check(provider, vaultPassphrase(cfg)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credential for %s is usable.\n", provider)
			return nil
		},
	}
}

func newCredentialsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, keyVault, err := ctx.openVault()
			if err != nil {
				return err
			}
			provider := strings.ToLower(strings.TrimSpace(args[0]))
			if err := keyVault.Delete(provider); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed credential for %s.\n", provider)
			return nil
		},
	}
}

func newCredentialsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List providers with stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, keyVault, err := ctx.openVault()
			if err != nil {
				return err
			}
			providers, err := keyVault.List()
			if err != nil {
				return err
			}
			if len(providers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No credentials stored.")
				return nil
			}
			for _, provider := range providers {
				fmt.Fprintln(cmd.OutOrStdout(), provider)
			}
			return nil
		},
	}
}

// readSecret reads a key without echoing when stdin is a terminal, so the
// plaintext never lands in scrollback. Piped input is read as a single line.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		fmt.Fprint(cmd.OutOrStdout(), prompt)
		raw, err := term.ReadPassword(int(fd))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
