package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taiagent/taiagent/internal/core"
	"github.com/taiagent/taiagent/internal/store"
)

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	var (
		sessionID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored sessions, or print one session's messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := setup(cmd, v, true, false)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); err == nil {
					err = cerr
				}
			}()

			out := cmd.OutOrStdout()
			if sessionID == "" {
				sessions, err := a.db.ListSessions(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return writeSessions(out, sessions)
			}

			sess, err := a.db.GetSession(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			msgs, err := a.db.SessionMessages(cmd.Context(), sess.ID)
			if err != nil {
				return err
			}
			if limit > 0 && len(msgs) > limit {
				msgs = msgs[len(msgs)-limit:]
			}
			fmt.Fprintf(out, "session %s: %s (%s/%s)\n", sess.ID, sess.Title, sess.Provider, sess.Model)
			for _, m := range msgs {
				writeMessage(out, m)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "print the messages of this session")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions or messages to print")
	return cmd
}

func writeSessions(w io.Writer, sessions []store.Session) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPDATED\tMESSAGES\tMODEL\tTITLE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s/%s\t%s\n",
			s.ID, s.UpdatedAt.Local().Format(time.DateTime), s.MessageCount, s.Provider, s.Model, summarize(s.Title))
	}
	return tw.Flush()
}

func writeMessage(w io.Writer, sm store.StoredMessage) {
	m := sm.Message
	stamp := sm.CreatedAt.Local().Format(time.TimeOnly)
	switch {
	case m.Role == core.RoleTool:
		fmt.Fprintf(w, "[%s] tool %s (%s): %s\n", stamp, m.Name, m.ToolCallID, summarize(m.Content))
	case len(m.ToolCalls) > 0:
		calls := make([]string, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			calls = append(calls, fmt.Sprintf("%s(%s)", tc.Function.Name, tc.Function.Arguments.Text()))
		}
		fmt.Fprintf(w, "[%s] %s calls %s\n", stamp, m.Role, strings.Join(calls, ", "))
	default:
		fmt.Fprintf(w, "[%s] %s: %s\n", stamp, m.Role, m.Content)
	}
}
