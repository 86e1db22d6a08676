package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <api>",
	Short: "Crawl an API's documentation into a stored specification",
	Long: `Fetch the current specification for one API and store it.

An OpenAPI document is preferred when the registry declares one;
otherwise the docs site is crawled via the crawl provider, which
requires FIRECRAWL_API_KEY. A failed crawl leaves the previously
stored specification untouched.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		apiID := args[0]
		reg := loadRegistry()
		if _, ok := reg.Entry(apiID); !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown api %q\n", apiID)
			os.Exit(1)
		}

		c := newCrawler(reg)
		if c == nil {
			fmt.Fprintf(os.Stderr, "Error: FIRECRAWL_API_KEY is not set\n")
			os.Exit(1)
		}

		store := openStore()
		defer store.Close()

		cyan := color.New(color.FgCyan).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Crawling %s documentation...\n", cyan("▶"), apiID)

		ctx := context.Background()
		spec, err := c.Crawl(ctx, apiID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: crawl failed: %v\n", err)
			os.Exit(1)
		}

		if err := store.UpsertSpec(ctx, spec); err != nil {
			fmt.Fprintf(os.Stderr, "Error: storing spec: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s %s: %d endpoints, %d schemas", green("✓"), apiID, len(spec.Endpoints), len(spec.Schemas))
		if spec.Version != "" {
			fmt.Printf(" (version %s)", spec.Version)
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}
