package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newAskCmd(v *viper.Viper) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := setup(cmd, v, true, true)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); err == nil {
					err = cerr
				}
			}()

			sess, err := a.session(cmd, sessionID)
			if err != nil {
				return err
			}
			reply, err := sess.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "continue a stored session")
	return cmd
}
