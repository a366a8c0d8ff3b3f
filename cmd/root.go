package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"curator/internal/config"
	"curator/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	appCfg  config.Config
)

// rootCmd is the base command called without any subcommands.
var rootCmd = &cobra.Command{
	Use:          "curator",
	Short:        "Feed curation pipeline",
	Long:         "Curates syndication feeds into a rate-limited stream of AI-classified draft posts.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}

func initConfig() {
	v := viper.GetViper()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/curator")
		v.AddConfigPath("configs")
	}

	v.SetEnvPrefix("curator")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env overrides for keys viper knows about.
	for _, key := range []string{
		"app.log_level",
		"redis.addr", "redis.username", "redis.password", "redis.db", "redis.prefix",
		"store.driver",
		"sanity.project_id", "sanity.dataset", "sanity.token", "sanity.api_version", "sanity.base_url",
		"openai.model", "openai.base_url", "openai.temperature", "openai.timeout", "openai.min_interval",
		"feeds.items_per_feed", "feeds.user_agent", "feeds.timeout",
		"pipeline.promote_limit", "pipeline.promote_as", "pipeline.workers", "pipeline.io_timeout", "pipeline.interval",
		"cloudflare.account_id", "cloudflare.api_token",
		"metrics.addr",
	} {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("openai.api_key", "CURATOR_OPENAI_API_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(&appCfg); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing config: %v\n", err)
		os.Exit(1)
	}

	appCfg.FillDefaults()
	logging.Setup(os.Stderr, appCfg.App.LogLevel)
}

// GetConfig exposes the loaded configuration to subcommands.
func GetConfig() config.Config {
	return appCfg
}

// mustValidate exits with status 1 when check fails. Configuration errors
// are the only fatal condition before pipeline work starts.
func mustValidate(check func() error) {
	if err := check(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}
}
