package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/isyncso/apidiag/internal/crawler"
	"github.com/isyncso/apidiag/internal/fixer"
	"github.com/isyncso/apidiag/internal/registry"
	"github.com/isyncso/apidiag/internal/storage/sqlite"
)

var (
	dbPath       string
	registryPath string
	scanRoot     string
)

var rootCmd = &cobra.Command{
	Use:   "apidiag",
	Short: "Diagnose drift between external API docs and your integration code",
	Long: `apidiag keeps third-party API integrations honest.

It crawls provider documentation into structured specifications, scans
the project's registered source files for API call sites, detects
mismatches between the two (moved endpoints, renamed fields, missing
required fields), and proposes concrete code fixes.

Typical flow:
  apidiag crawl surfe      # refresh the stored spec for one API
  apidiag scan             # list call sites found in the code
  apidiag detect           # compare code against stored specs
  apidiag fix <mismatch>   # generate a patch for one mismatch
  apidiag status           # summary report
  apidiag serve            # expose the same actions over HTTP`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", ".apidiag/diag.db", "Path to the diagnostics database")
	rootCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "YAML registry file replacing the built-in API table")
	rootCmd.PersistentFlags().StringVar(&scanRoot, "root", ".", "Project root containing the registered source files")
}

// loadRegistry returns the built-in registry or the YAML override.
func loadRegistry() *registry.Registry {
	if registryPath == "" {
		return registry.New()
	}
	reg, err := registry.Load(registryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return reg
}

func openStore() *sqlite.Store {
	store, err := sqlite.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return store
}

// newCrawler builds a crawler when a crawl provider credential is
// present. Without one the crawl feature degrades rather than failing
// the whole tool.
func newCrawler(reg *registry.Registry) *crawler.Crawler {
	apiKey := os.Getenv("FIRECRAWL_API_KEY")
	if apiKey == "" {
		return nil
	}
	return crawler.New(reg, crawler.NewFirecrawlClient(apiKey))
}

// newFixer builds a fixer, with the LLM path enabled only when an
// Anthropic credential is configured.
func newFixer() *fixer.Fixer {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return fixer.New(nil)
	}
	gen, err := fixer.NewAnthropicGenerator(apiKey, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, continuing without LLM fixes\n", err)
		return fixer.New(nil)
	}
	return fixer.New(gen)
}
