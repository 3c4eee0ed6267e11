// Package cmd implements the lrbatch commands.
package cmd

import (
	"os"
	"strings"

	"github.com/airbloc/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logger.New("lrbatch")

var rootCmd = &cobra.Command{
	Use:   "lrbatch",
	Short: "Runs batch jobs reporting their metrics",
	Long: "lrbatch runs the sample batch jobs on a job repository kept in memory or on etcd.\n" +
		"Every run reports job, step, item and chunk meters which can be scraped from /metrics.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("store", "memory", "job repository backend (memory, etcd)")
	flags.StringSlice("etcd-endpoints", []string{"127.0.0.1:2379"}, "etcd endpoints used by the etcd store")
	flags.String("etcd-namespace", "lrbatch/", "key prefix of the etcd store")
	flags.String("meter-prefix", "spring.batch", "prefix of the meter names")

	for _, name := range []string{"store", "etcd-endpoints", "etcd-namespace", "meter-prefix"} {
		cobra.CheckErr(viper.BindPFlag(name, flags.Lookup(name)))
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(lastCmd())
}

func initConfig() {
	viper.SetEnvPrefix("LRBATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
