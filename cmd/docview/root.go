package main

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docview",
	Short: "Read a remote Markdown document with search and highlighting",
	Long: `docview fetches a single Markdown document, renders it with syntax
highlighted code blocks and diagrams, and lets you search it incrementally.
Use "view" for the terminal reader or "serve" for a local preview page.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "docview.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
