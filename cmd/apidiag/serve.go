package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/isyncso/apidiag/internal/scanner"
	"github.com/isyncso/apidiag/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the diagnostics actions over HTTP",
	Long: `Start an HTTP server exposing POST /api-diagnostics, the same
action-dispatch surface the CLI commands use: healthCheck,
healthCheckAll, crawl, scan, detect, generateFix and status.`,
	Run: func(cmd *cobra.Command, args []string) {
		reg := loadRegistry()
		store := openStore()
		defer store.Close()

		srv, err := server.New(server.Config{
			Registry: reg,
			Scanner:  scanner.New(reg, scanRoot),
			Crawler:  newCrawler(reg),
			Fixer:    newFixer(),
			Store:    store,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		slog.Info("serving diagnostics", "addr", serveAddr)
		if err := http.ListenAndServe(serveAddr, srv.Handler()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8787", "Listen address")
	rootCmd.AddCommand(serveCmd)
}
