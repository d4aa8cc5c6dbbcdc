package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taiagent/taiagent/internal/agent"
	"github.com/taiagent/taiagent/internal/console"
)

func newChatCmd(v *viper.Viper) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation. Type exit, quit or 退出 to leave.
With --session the stored conversation is resumed.`,
		Args: cobra.NoArgs,
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

			c := &console.Console{
				In:     cmd.InOrStdin(),
				Out:    cmd.OutOrStdout(),
				Err:    cmd.ErrOrStderr(),
				Banner: fmt.Sprintf("taiagent %s (%s/%s), session %s. Type exit to quit.", version, a.cfg.Provider, a.cfg.Model, sess.ID),
			}
			return c.Run(cmd.Context(), sess.Ask)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "resume a stored session by id")
	return cmd
}

// session starts a stored session, or resumes id when set.
func (a *app) session(cmd *cobra.Command, id string) (*agent.Session, error) {
	loop, err := a.loop()
	if err != nil {
		return nil, err
	}
	prompt, err := a.systemPrompt()
	if err != nil {
		return nil, err
	}
	var sess *agent.Session
	if id != "" {
		sess, err = agent.Resume(cmd.Context(), loop, a.db, id, prompt, a.cfg.HistoryMessages)
	} else {
		sess, err = agent.StartSession(cmd.Context(), loop, a.db, prompt, a.cfg.Provider, a.cfg.Model)
	}
	if err != nil {
		return nil, err
	}
	sess.Logger = a.logger
	return sess, nil
}
