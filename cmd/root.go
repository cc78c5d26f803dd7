package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vaultrecon/internal/config"
	"vaultrecon/internal/ui"
	"vaultrecon/pkg/errors"
)

var (
	log = logrus.New()

	rootCmd = &cobra.Command{
		Use:   "vaultrecon",
		Short: "Reconcile Snowflake source tables against a data vault",
		Long: `vaultrecon counts rows at every layer of a data vault load (source, hub,
link, satellite, business view), reports how many rows were lost between
layers and samples the source rows that never reached the hub.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
	}
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.ShowError(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "config file (default $VAULTRECON_CONFIG or ~/.vaultrecon/config.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	bindFlags(pf, "config", "log-level", "log-format")
}

func initConfig() {
	viper.SetEnvPrefix("VAULTRECON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// bindFlags exposes flags through viper so VAULTRECON_<FLAG> env vars work.
// Keys use underscores: --sample-limit is viper key "sample_limit".
func bindFlags(fs *pflag.FlagSet, names ...string) {
	for _, name := range names {
		if err := viper.BindPFlag(viperKey(name), fs.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func viperKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

func setupLogging() error {
	level, err := logrus.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return errors.ValidationError("log-level", viper.GetString("log_level"), "must be one of debug, info, warn, error")
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	switch strings.ToLower(viper.GetString("log_format")) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return errors.ValidationError("log-format", viper.GetString("log_format"), "must be text or json")
	}
	return nil
}

// configFile is the --config value, falling back to the default location.
func configFile() string {
	if path := viper.GetString("config"); path != "" {
		return path
	}
	return config.GetConfigFile()
}
