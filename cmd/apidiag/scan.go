package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/isyncso/apidiag/internal/scanner"
)

var scanAPIFilter string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List external API call sites found in the registered source files",
	Run: func(cmd *cobra.Command, args []string) {
		reg := loadRegistry()
		s := scanner.New(reg, scanRoot)

		usages, err := s.Scan(context.Background(), scanAPIFilter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(usages) == 0 {
			fmt.Println("No API call sites found")
			return
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		for _, u := range usages {
			fmt.Printf("%s %-6s %-32s %s:%d", cyan(u.APIID), u.Method, u.EndpointPath, u.FilePath, u.LineNumber)
			if u.FunctionName != "" {
				fmt.Printf(" (%s)", u.FunctionName)
			}
			fmt.Println()
		}
		fmt.Printf("\n%d call sites\n", len(usages))
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanAPIFilter, "api", "", "Only report usages of one API")
	rootCmd.AddCommand(scanCmd)
}
