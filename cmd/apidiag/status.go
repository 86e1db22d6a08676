package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/isyncso/apidiag/internal/storage"
	"github.com/isyncso/apidiag/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize stored specifications and open mismatches",
	Run: func(cmd *cobra.Command, args []string) {
		reg := loadRegistry()
		store := openStore()
		defer store.Close()
		ctx := context.Background()

		specs, err := store.ListSpecs(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		crawled := make(map[string]*types.CrawledAPISpec, len(specs))
		for _, spec := range specs {
			crawled[spec.APIID] = spec
		}

		mismatches, err := store.ListMismatches(ctx, storage.MismatchFilter{Status: types.StatusOpen})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		fmt.Println("Specifications:")
		for _, entry := range reg.ActiveEntries() {
			if spec, ok := crawled[entry.ID]; ok {
				fmt.Printf("  %s %-12s %3d endpoints, crawled %s\n",
					green("✓"), entry.ID, len(spec.Endpoints), spec.CrawledAt.Format("2006-01-02"))
			} else {
				fmt.Printf("  %s %-12s not crawled\n", yellow("-"), entry.ID)
			}
		}

		fmt.Printf("\nOpen mismatches: %d\n", len(mismatches))
		for _, m := range mismatches {
			marker := yellow("!")
			if m.Severity == types.SeverityCritical {
				marker = red("✗")
			}
			fmt.Printf("  %s [%s] %s\n", marker, m.ID, m.Description)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
