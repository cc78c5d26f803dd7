package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaultrecon/internal/common"
	"vaultrecon/internal/config"
	"vaultrecon/internal/ui"
	"vaultrecon/pkg/errors"
	"vaultrecon/pkg/models"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a configuration with one example table pair to --config (default
~/.vaultrecon/config.yaml). Edit the account, warehouse and tables before running
'vaultrecon validate'.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "overwrite an existing file")
}

func starterConfig() *models.Config {
	cfg := &models.Config{
		Snowflake: models.Snowflake{
			Account:   "xy12345.eu-west-1",
			Username:  "RECON_USER",
			Role:      "RECON_ROLE",
			Warehouse: "RECON_WH",
		},
		Reconcile: models.ReconcileConfig{
			SampleLimit: config.DefaultSampleLimit,
		},
		Tables: []models.TableConfig{{
			SourceTable:       "SOURCE_DB.SOURCE_SCHEMA.ENTITY_TABLE",
			HubTable:          "DV_DB.RAWVAULT.H_ENTITY",
			CurSatelliteTable: "DV_DB.RAWVAULT.S_ENTITY_CURRENT",
			SatelliteTable:    "DV_DB.RAWVAULT.S_ENTITY",
			BizviewTable:      "DV_DB.BIZVIEWS.FACT_ENTITY",
			SourceKey:         "ID",
			HubKey:            "ENTITY_ID",
			SatelliteHashKey:  "HK_H_ENTITY",
			BizviewKey:        "ENTITY_ID",
			DeletedColumn:     "_IS_DELETED",
			ColumnsToCompare:  []string{"NAME", "CODE"},
		}},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := common.CleanPath(configFile())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid config path")
	}

	if force, _ := cmd.Flags().GetBool("force"); !force && config.Exists(path) {
		return errors.New(errors.ErrCodeConfigInvalid, "Configuration file already exists").
			WithContext("path", path).
			WithSuggestions("Pass --force to overwrite it")
	}

	if err := config.Save(path, starterConfig()); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to write configuration").
			WithContext("path", path)
	}

	ui.ShowSuccess(fmt.Sprintf("Wrote %s", path))
	ui.ShowInfo("Store the password with 'vaultrecon credentials set', then run 'vaultrecon validate --connect'")
	return nil
}
