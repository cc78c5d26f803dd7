package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaultrecon/internal/config"
	"vaultrecon/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file",
	Long: `Load and validate the configuration: object names, key columns, duplicate
tables and timeouts. With --connect a Snowflake session is opened and pinged.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("connect", false, "also connect to Snowflake")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := configFile()
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	ui.ShowSuccess(fmt.Sprintf("%s is valid (%d tables)", path, len(cfg.Tables)))

	if connectFlag, _ := cmd.Flags().GetBool("connect"); !connectFlag {
		return nil
	}

	svc, err := connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Ping(cmd.Context()); err != nil {
		return err
	}
	ui.ShowSuccess(fmt.Sprintf("Connected to %s as %s", cfg.Snowflake.Account, cfg.Snowflake.Username))
	return nil
}
