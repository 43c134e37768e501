package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/techscore/internal/output"
	"github.com/joescharf/techscore/internal/submit"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "techscore",
	Short: "Submit a technical design score to the fullstack quality platform",
	Long: `techscore submits one technical design quality score record to the
fullstack quality platform.

Fields come from command-line flags or from a JSON file (--from-file).
All ten fields are required; missing ones are reported before any
request is made.

Examples:
  techscore --url http://10.38.219.120:80 \
      --tech-doc-name "Order system design" \
      --tech-doc-link "https://wiki.example.com/pages/viewpage.action?pageId=123456" \
      --submitter "Zhang San" \
      --business-line "E-commerce" \
      --product-score 85.5 --backend-score 90 --frontend-score 88 \
      --test-score 92.5 --global-score 89 \
      --global-level "excellent"

  techscore --url http://10.38.219.120:80 --from-file data.json`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitRun(cmd)
	},
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Build and validate the request without sending it")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/techscore/config.yaml)")
	rootCmd.PersistentFlags().Duration("timeout", submit.DefaultTimeout, "Request timeout")
	rootCmd.PersistentFlags().String("url", "", "API server address, e.g. http://10.38.219.120:80 (required)")

	addFieldFlags(rootCmd)
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TECHSCORE")
	viper.AutomaticEnv()

	viper.SetDefault("url", "")
	viper.SetDefault("timeout", submit.DefaultTimeout)
	viper.SetDefault("submitter", "")
	viper.SetDefault("business_line", "")

	// Flags win over env and file when set.
	_ = viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	if ui == nil {
		ui = output.New()
	}
	ui.Verbose = verbose
	ui.DryRun = dryRun
}

// requestTimeout returns the configured timeout, falling back to the default
// when the configured value is not positive.
func requestTimeout() time.Duration {
	if d := viper.GetDuration("timeout"); d > 0 {
		return d
	}
	return submit.DefaultTimeout
}

// newSubmitClient builds the HTTP submitter, replaceable in tests.
var newSubmitClient = func() *submit.Client {
	return submit.New(submit.WithTimeout(requestTimeout()))
}
