package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "concours",
	Short: "Concours — competition leaderboard backend",
	Long:  "Concours is the backend for a scored competition: user and team leaderboards with automatic position recalculation, a curated podium, team membership with join requests, and a friend graph.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/concours.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
