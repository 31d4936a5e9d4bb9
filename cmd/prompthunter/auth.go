package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"prompthunter/pkg/auth"
	"prompthunter/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials",
	Long: `Manage the API credentials prompthunter uses.

Secrets are stored using, in order:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only)

Known secrets: ` + strings.Join(auth.KnownSecrets, ", "),
}

var authSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Store a secret, prompting for its value",
	Example: `  prompthunter auth set twitter_bearer_token
  echo "$KEY" | prompthunter auth set anthropic_api_key`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSet,
}

var authShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"list"},
	Short:   "List stored secrets with their values masked",
	Args:    cobra.NoArgs,
	RunE:    runAuthShow,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a stored secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthDelete,
}

var authGuideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain how to obtain each credential",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.ShowTokenGuide(ui.Output())
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authDeleteCmd)
	authCmd.AddCommand(authGuideCmd)
}

func secretName(arg string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(arg))
	if !auth.IsKnownSecret(name) {
		return "", fmt.Errorf("unknown secret %q (known: %s)", arg, strings.Join(auth.KnownSecrets, ", "))
	}
	return name, nil
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	name, err := secretName(args[0])
	if err != nil {
		return err
	}

	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize secret store: %w", err)
	}

	value, err := auth.ReadSecret(os.Stdin, os.Stderr, name)
	if err != nil {
		return err
	}
	if value == "" {
		return errors.New("empty value, nothing stored")
	}

	if err := manager.Store(&auth.Secret{Name: name, Value: value}); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Stored %s (%s)", name, auth.MaskString(value)))
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize secret store: %w", err)
	}

	secrets, err := manager.List()
	if err != nil {
		return err
	}
	if len(secrets) == 0 {
		ui.PrintWarning("No secrets stored")
		fmt.Fprintln(ui.Output(), "Run 'prompthunter auth guide' to get started")
		return nil
	}

	for _, s := range secrets {
		masked := auth.Sanitize(s)
		modified := "-"
		if !s.LastModified.IsZero() {
			modified = s.LastModified.Local().Format(time.DateTime)
		}
		fmt.Fprintf(ui.Output(), "%-22s %-14s %-10s %s\n", s.Name, masked.Value, s.Source, ui.Dim(modified))
	}
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	name, err := secretName(args[0])
	if err != nil {
		return err
	}

	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize secret store: %w", err)
	}

	if err := manager.Delete(name); err != nil {
		if errors.Is(err, auth.ErrSecretNotFound) {
			return fmt.Errorf("%s is not stored", name)
		}
		return err
	}
	ui.PrintSuccess("Deleted " + name)
	if vars := auth.EnvVarsFor(name); manager.Value(name) != "" {
		ui.PrintWarning("A value is still set in the environment", strings.Join(vars, " or "))
	}
	return nil
}
