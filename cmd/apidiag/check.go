package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/isyncso/apidiag/internal/health"
	"github.com/isyncso/apidiag/internal/types"
)

var checkCmd = &cobra.Command{
	Use:   "check [api]",
	Short: "Probe external APIs for reachability and valid credentials",
	Long: `Probe registered external APIs with minimal live requests.

With no argument every active API is checked; with an argument only
that API is probed.

Examples:
  apidiag check
  apidiag check surfe`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reg := loadRegistry()
		checker := health.NewChecker(reg)
		ctx := context.Background()

		var checks []types.HealthCheck
		if len(args) == 1 {
			check, err := checker.CheckAPI(ctx, args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			checks = []types.HealthCheck{check}
		} else {
			checks = checker.CheckAll(ctx)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		down := 0
		for _, check := range checks {
			switch check.Status {
			case types.HealthHealthy:
				fmt.Printf("%s %-12s %4dms\n", green("✓"), check.APIID, check.LatencyMS)
			case types.HealthDegraded:
				fmt.Printf("%s %-12s %4dms  %s\n", yellow("!"), check.APIID, check.LatencyMS, check.Error)
			default:
				down++
				fmt.Printf("%s %-12s %s\n", red("✗"), check.APIID, check.Error)
			}
		}

		if down > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
