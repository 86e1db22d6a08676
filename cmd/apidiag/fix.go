package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/isyncso/apidiag/internal/fixer"
	"github.com/isyncso/apidiag/internal/storage"
	"github.com/isyncso/apidiag/internal/storage/sqlite"
	"github.com/isyncso/apidiag/internal/types"
)

var fixAll bool

var fixCmd = &cobra.Command{
	Use:   "fix [mismatch-id]",
	Short: "Generate code fixes for detected mismatches",
	Long: `Generate a concrete patch for a previously detected mismatch, or
for every open auto-fixable mismatch with --all.

High-confidence deterministic substitutions are returned directly.
Lower-confidence cases use the Anthropic API when ANTHROPIC_API_KEY is
set; model-generated patches are always marked for manual review.
Fixes are proposals only and are never written to source files.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if fixAll == (len(args) == 1) {
			fmt.Fprintf(os.Stderr, "Error: pass either a mismatch id or --all\n")
			os.Exit(1)
		}

		store := openStore()
		defer store.Close()
		ctx := context.Background()
		f := newFixer()

		if fixAll {
			fixAllOpen(ctx, store, f)
			return
		}

		mismatch, err := store.GetMismatch(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if mismatch == nil {
			fmt.Fprintf(os.Stderr, "Error: mismatch %q not found\n", args[0])
			os.Exit(1)
		}

		fix, err := f.GenerateFix(ctx, mismatch)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if fix == nil {
			fmt.Fprintf(os.Stderr, "Error: mismatch %s is not auto-fixable\n", mismatch.ID)
			os.Exit(1)
		}

		mismatch.SuggestedFix = fix
		mismatch.Status = types.StatusFixGenerated
		if err := store.UpsertMismatch(ctx, mismatch); err != nil {
			fmt.Fprintf(os.Stderr, "Error: storing mismatch: %v\n", err)
			os.Exit(1)
		}

		printFix(fix)
	},
}

// fixAllOpen batch-generates fixes for every open mismatch and
// persists the status transitions.
func fixAllOpen(ctx context.Context, store *sqlite.Store, f *fixer.Fixer) {
	open, err := store.ListMismatches(ctx, storage.MismatchFilter{Status: types.StatusOpen})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	results := f.GenerateFixes(ctx, open)
	generated := 0
	for i, result := range results {
		if result.Error != "" {
			fmt.Printf("%s %s: %s\n", yellow("!"), result.MismatchID, result.Error)
			continue
		}
		if result.Fix == nil {
			continue
		}
		if err := store.UpsertMismatch(ctx, open[i]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: storing mismatch %s: %v\n", result.MismatchID, err)
			os.Exit(1)
		}
		generated++
		fmt.Printf("%s %s: %s\n", green("✓"), result.MismatchID, result.Fix.Description)
	}
	fmt.Printf("\n%d fixes generated from %d open mismatches\n", generated, len(open))
}

func printFix(fix *types.CodeFix) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("%s %s\n\n", green("✓"), fix.Description)
	fmt.Print(fix.Diff)
	fmt.Printf("\nConfidence: %.2f\n", fix.Confidence)
	if fix.RequiresManualReview {
		fmt.Printf("%s Review required before applying\n", yellow("!"))
	}
}

func init() {
	fixCmd.Flags().BoolVar(&fixAll, "all", false, "Generate fixes for every open mismatch")
	rootCmd.AddCommand(fixCmd)
}
