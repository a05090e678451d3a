/*
	Copyright 2025 Markus Papenbrock
*/

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mpapenbr/qualipredict/log"
	clientCmd "github.com/mpapenbr/qualipredict/pkg/cmd/client"
	predictCmd "github.com/mpapenbr/qualipredict/pkg/cmd/predict"
	serverCmd "github.com/mpapenbr/qualipredict/pkg/cmd/server"
	showCmd "github.com/mpapenbr/qualipredict/pkg/cmd/show"
	cmdutil "github.com/mpapenbr/qualipredict/pkg/cmd/util"
	"github.com/mpapenbr/qualipredict/pkg/config"
	"github.com/mpapenbr/qualipredict/version"
)

const envPrefix = "QP"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "qpred",
	Short:   "Simulated Formula 1 qualifying predictions",
	Long:    ``,
	Version: version.FullVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cmdutil.SetupLogger()
		return cmdutil.LoadReferenceData()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		//nolint:errcheck // sync on stderr may fail on some platforms
		log.Sync()
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.qpred.yml)")
	rootCmd.PersistentFlags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat,
		"log-format",
		"text",
		"controls the log output format (json, text)")
	rootCmd.PersistentFlags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules, e.g. '*:grpc.* debug+:predict'")
	rootCmd.PersistentFlags().StringVar(&config.ReferenceData,
		"reference-data",
		"",
		"yaml file replacing the embedded reference data")
	rootCmd.PersistentFlags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"15s",
		"Duration to wait for other services to be ready")

	// add commands here
	rootCmd.AddCommand(serverCmd.NewServerCmd())
	rootCmd.AddCommand(predictCmd.NewPredictCmd())
	rootCmd.AddCommand(showCmd.NewShowCmd())
	rootCmd.AddCommand(clientCmd.NewClientCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".qpred" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".qpred")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
}

// Bind each cobra flag of cmd and its subcommands to its associated viper
// configuration (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --log-level to QP_LOG_LEVEL
		envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if err := v.BindEnv(f.Name,
			fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
			fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
	for _, sub := range cmd.Commands() {
		bindFlags(sub, v)
	}
}
