package main

import (
	"fmt"

	"configbot/internal/action"
	"configbot/internal/store"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
)

var validateDir string

var validateCmd = &cobra.Command{
	Use:          "validate",
	Short:        "Load every configuration document and parse every action",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := validateDir
		if dir == "" {
			dir = configDir()
		}
		st, err := store.Open(dir)
		if err != nil {
			return err
		}

		records, err := action.ParseAll(st.Actions())
		err = errors.Combine(err, st.CheckCommands())
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d actions valid\n", len(records))
		for _, name := range st.CommandNames() {
			doc, _ := st.Command(name)
			state := "enabled"
			if !doc.IsEnabled() {
				state = "disabled"
			}
			fmt.Fprintf(out, "command %s: %s\n", name, state)
		}
		return err
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateDir, "dir", "", "configuration directory (default $CONFIG_DIR or configs)")
}
