package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docview/internal/export"
)

var (
	printOut   string
	printQuery string
)

var printCmd = &cobra.Command{
	Use:   "print",
	Short: "Write a printable HTML page or PDF of the document",
	Long: `Fetches and renders the document, optionally filtered by a search
query, and writes it as a standalone HTML page. An output path ending in
.pdf is printed through headless Chrome.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		a, err := newApp(ctx, cfg, os.Stderr, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		s := a.session
		if err := s.Load(ctx); err != nil {
			return err
		}
		if printQuery != "" {
			if err := s.SearchNow(printQuery); err != nil {
				return err
			}
		}

		if strings.HasSuffix(strings.ToLower(printOut), ".pdf") {
			opts := export.DefaultPDFOptions()
			opts.ExecPath = cfg.Diagram.ChromePath
			pdf, err := s.PrintPDF(ctx, opts)
			if err != nil {
				return err
			}
			return os.WriteFile(printOut, pdf, 0o644)
		}

		if printOut == "" || printOut == "-" {
			if err := s.Print(ctx, cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("print page: %w", err)
			}
			return nil
		}
		return printTo(ctx, s, printOut)
	},
}

func init() {
	printCmd.Flags().StringVarP(&printOut, "output", "o", "-", "output path (.html or .pdf), - for stdout")
	printCmd.Flags().StringVarP(&printQuery, "query", "q", "", "print only blocks matching this search")
	rootCmd.AddCommand(printCmd)
}
