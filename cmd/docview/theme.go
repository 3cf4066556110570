package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docview/internal/prefs"
	"github.com/dgallion1/docview/internal/theme"
)

var themeCmd = &cobra.Command{
	Use:   "theme [light|dark]",
	Short: "Show or set the persisted theme preference",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := prefs.OpenFile(cfg.PrefsPath())
		if err != nil {
			return err
		}

		if len(args) == 0 {
			current, ok, err := store.Get(theme.PreferenceKey)
			if err != nil {
				return err
			}
			if !ok {
				current = cfg.DefaultTheme + " (default)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), current)
			return nil
		}

		name, err := theme.Parse(args[0])
		if err != nil {
			return err
		}
		if err := store.Set(theme.PreferenceKey, string(name)); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), statusStyle.Render("theme set to "+string(name)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)
}
