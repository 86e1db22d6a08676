package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/isyncso/apidiag/internal/detector"
	"github.com/isyncso/apidiag/internal/scanner"
	"github.com/isyncso/apidiag/internal/types"
)

var detectAPIFilter string

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Compare code call sites against stored specifications",
	Long: `Scan the registered source files and compare every call site
against the stored specifications and the static migration tables.
Detected mismatches are persisted and can be fixed individually with
"apidiag fix".`,
	Run: func(cmd *cobra.Command, args []string) {
		reg := loadRegistry()
		store := openStore()
		defer store.Close()
		ctx := context.Background()

		usages, err := scanner.New(reg, scanRoot).Scan(ctx, detectAPIFilter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		stored, err := store.ListSpecs(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		specs := make(map[string]*types.CrawledAPISpec, len(stored))
		for _, spec := range stored {
			specs[spec.APIID] = spec
		}

		mismatches := detector.New(reg).Detect(specs, usages)
		for i := range mismatches {
			if err := store.UpsertMismatch(ctx, &mismatches[i]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: storing mismatch: %v\n", err)
				os.Exit(1)
			}
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		if len(mismatches) == 0 {
			fmt.Printf("%s %d call sites checked, no mismatches\n", green("✓"), len(usages))
			return
		}

		for _, m := range mismatches {
			marker := yellow("!")
			if m.Severity == types.SeverityCritical {
				marker = red("✗")
			}
			fmt.Printf("%s [%s] %s\n", marker, m.ID, m.Description)
			fmt.Printf("    %s:%d\n", m.Implementation.FilePath, m.Implementation.LineNumber)
			if m.AutoFixable {
				fmt.Printf("    fixable: %s → %s\n", m.SuggestedFix.OriginalCode, m.SuggestedFix.FixedCode)
			}
		}
		fmt.Printf("\n%d mismatches (%d auto-fixable)\n", len(mismatches), countFixable(mismatches))
		os.Exit(1)
	},
}

func countFixable(mismatches []types.APIMismatch) int {
	n := 0
	for _, m := range mismatches {
		if m.AutoFixable {
			n++
		}
	}
	return n
}

func init() {
	detectCmd.Flags().StringVar(&detectAPIFilter, "api", "", "Only detect mismatches for one API")
	rootCmd.AddCommand(detectCmd)
}
