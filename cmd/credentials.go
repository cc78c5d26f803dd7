package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"vaultrecon/internal/config"
	"vaultrecon/internal/ui"
	"vaultrecon/pkg/errors"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage the Snowflake password",
	Long: `Store the Snowflake password in the OS keyring, remove it, or encrypt it for
the config file. The password is resolved in this order when connecting:
snowflake.password in the config (plain or ENC[...]), SNOWFLAKE_PASSWORD,
then the keyring entry for snowflake.username.`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the password in the OS keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, err := credentialUser(cmd)
		if err != nil {
			return err
		}
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		if err := config.StorePassword(username, password); err != nil {
			return err
		}
		ui.ShowSuccess(fmt.Sprintf("Password for %s stored in the %s keyring", username, config.KeyringService))
		return nil
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the password from the OS keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, err := credentialUser(cmd)
		if err != nil {
			return err
		}
		if err := config.DeletePassword(username); err != nil {
			return err
		}
		ui.ShowSuccess(fmt.Sprintf("Password for %s removed", username))
		return nil
	},
}

var credentialsEncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Print an ENC[...] value for snowflake.password",
	Long: `Encrypt a password with AES-256-GCM for use as snowflake.password. The key is
derived from VAULTRECON_ENCRYPTION_KEY, or from the host name and home directory
when it is not set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		encrypted, err := config.EncryptPassword(password)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCredentials, "Failed to encrypt password")
		}
		fmt.Fprintln(cmd.OutOrStdout(), encrypted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsSetCmd, credentialsDeleteCmd, credentialsEncryptCmd)

	credentialsCmd.PersistentFlags().StringP("username", "u", "", "Snowflake user (default snowflake.username from the config)")
	credentialsCmd.PersistentFlags().Bool("password-stdin", false, "read the password from stdin instead of prompting")
}

func credentialUser(cmd *cobra.Command) (string, error) {
	if username, _ := cmd.Flags().GetString("username"); username != "" {
		return username, nil
	}
	cfg, err := config.Load(configFile())
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCredentials, "No username given").
			WithSuggestions("Pass --username or set snowflake.username in the config")
	}
	if cfg.Snowflake.Username == "" {
		return "", errors.ConfigError("snowflake.username is not set", "snowflake.username")
	}
	return cfg.Snowflake.Username, nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	if fromStdin, _ := cmd.Flags().GetBool("password-stdin"); fromStdin {
		return readSecret(cmd.InOrStdin())
	}
	return ui.Password("Snowflake password:", "Stored in the OS keyring, never written to disk")
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, errors.ErrCodeCredentials, "Failed to read password")
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New(errors.ErrCodeCredentials, "Empty password")
	}
	return secret, nil
}
