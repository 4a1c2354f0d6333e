package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vela",
	Short: "risk gated position lifecycle engine",
	Long: `vela validates external trading signals, sizes entries against the
portfolio risk budget and manages every open position through its full
lifecycle of partial take profits, trailing stop and time based exit.`,
}

var debug bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(runCmd, statusCmd)

	cobra.OnInitialize(func() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
