package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newToolsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the model can call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := a.openTools(); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, def := range a.tools.Definitions() {
				fmt.Fprintf(tw, "%s\t%s\n", def.Function.Name, def.Function.Description)
			}
			return tw.Flush()
		},
	}
}
