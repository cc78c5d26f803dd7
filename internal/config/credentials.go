package config

import (
	stderrors "errors"
	"os"

	"github.com/zalando/go-keyring"

	"vaultrecon/pkg/errors"
	"vaultrecon/pkg/models"
)

const (
	// KeyringService is the OS keyring service holding Snowflake passwords, keyed by username.
	KeyringService = "vaultrecon"

	passwordEnvVar = "SNOWFLAKE_PASSWORD"
)

// ResolvePassword returns the Snowflake password from the config, the
// SNOWFLAKE_PASSWORD environment variable or the OS keyring, in that order.
func ResolvePassword(sf models.Snowflake) (string, error) {
	if sf.Password != "" {
		return sf.Password, nil
	}
	if pw := os.Getenv(passwordEnvVar); pw != "" {
		return pw, nil
	}
	if sf.Username == "" {
		return "", errors.New(errors.ErrCodeCredentials, "No Snowflake username configured")
	}

	pw, err := keyring.Get(KeyringService, sf.Username)
	if err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return "", errors.New(errors.ErrCodeCredentials, "No Snowflake password found").
				WithContext("user", sf.Username).
				WithSuggestions(
					"Set snowflake.password in the config file",
					"Export "+passwordEnvVar,
					"Run 'vaultrecon credentials set' to store it in the OS keyring",
				)
		}
		return "", errors.Wrap(err, errors.ErrCodeCredentials, "Failed to read password from keyring").
			WithContext("user", sf.Username)
	}
	return pw, nil
}

// StorePassword saves the password for username in the OS keyring.
func StorePassword(username, password string) error {
	if err := keyring.Set(KeyringService, username, password); err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentials, "Failed to store password in keyring")
	}
	return nil
}

// DeletePassword removes the stored password for username.
func DeletePassword(username string) error {
	if err := keyring.Delete(KeyringService, username); err != nil && !stderrors.Is(err, keyring.ErrNotFound) {
		return errors.Wrap(err, errors.ErrCodeCredentials, "Failed to delete password from keyring")
	}
	return nil
}
