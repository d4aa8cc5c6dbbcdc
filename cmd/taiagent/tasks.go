package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taiagent/taiagent/internal/store"
	"github.com/taiagent/taiagent/internal/tasks"
)

const summaryRunes = 60

func newTasksCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Plan a request into steps and run them",
	}
	cmd.AddCommand(newTasksPlanCmd(v), newTasksRunCmd(v), newTasksShowCmd(v))
	return cmd
}

func newTasksPlanCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "plan REQUEST...",
		Short: "Print the step plan for a request as YAML",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := setup(cmd, v, false, true)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); err == nil {
					err = cerr
				}
			}()

			plan, err := a.planner().Plan(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out, err := plan.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newTasksRunCmd(v *viper.Viper) *cobra.Command {
	var (
		planFile string
		attempts int
		delay    time.Duration
		jitter   float64
	)

	cmd := &cobra.Command{
		Use:   "run [REQUEST...]",
		Short: "Plan a request (or load --plan) and execute each step with retries",
		Long: `Plan a request, or load a plan file with --plan, then execute the steps in
order. A step that fails is retried; once its attempts are used up it is
skipped and the run continues with the next step.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if planFile == "" && len(args) == 0 {
				return errors.New("tasks run: give a request or --plan")
			}
			if planFile != "" && len(args) > 0 {
				return errors.New("tasks run: give either a request or --plan, not both")
			}
			a, err := setup(cmd, v, true, true)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); err == nil {
					err = cerr
				}
			}()

			var plan tasks.Plan
			if planFile != "" {
				plan, err = tasks.LoadPlanFile(planFile)
			} else {
				plan, err = a.planner().Plan(cmd.Context(), strings.Join(args, " "))
			}
			if err != nil {
				return err
			}

			policy := a.backoff()
			flags := cmd.Flags()
			if flags.Changed("attempts") {
				policy.Attempts = attempts
			}
			if flags.Changed("delay") {
				policy.Delay = delay
			}
			if flags.Changed("jitter") {
				policy.Jitter = jitter
			}

			loop, err := a.loop()
			if err != nil {
				return err
			}
			prompt, err := a.systemPrompt()
			if err != nil {
				return err
			}
			exec := &tasks.Executor{
				Runner:   &tasks.AgentRunner{Loop: loop, SystemPrompt: prompt + "\n\n" + tasks.StepInstructions},
				Policy:   policy,
				Logger:   a.logger.With("component", "tasks"),
				Tracer:   loop.Tracer,
				Recorder: a.db,
			}
			report, runErr := exec.ExecutePlan(cmd.Context(), plan)
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s (%d/%d steps succeeded)\n",
					report.RunID, report.Status(), report.Succeeded(), len(report.Steps))
				if err := writeOutcomes(cmd.OutOrStdout(), report.Steps); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&planFile, "plan", "", "YAML plan file to execute instead of planning")
	flags.IntVar(&attempts, "attempts", 3, "attempts per step (overrides retry.attempts)")
	flags.DurationVar(&delay, "delay", 20*time.Second, "delay between attempts (overrides retry.delay)")
	flags.Float64Var(&jitter, "jitter", 0, "random share of the delay, 0..1 (overrides retry.jitter)")
	return cmd
}

func newTasksShowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a recorded task run",
		Args:  cobra.ExactArgs(1),
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

			run, err := a.db.GetTaskRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			steps, err := a.db.TaskRunSteps(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %s, started %s\n", run.ID, run.Status, run.StartedAt.Format(time.RFC3339))
			if run.Request != "" {
				fmt.Fprintf(out, "request: %s\n", run.Request)
			}
			return writeRecords(out, steps)
		},
	}
}

func (a *app) planner() *tasks.Planner {
	return &tasks.Planner{Client: a.client, Logger: a.logger.With("component", "tasks")}
}

func writeOutcomes(w io.Writer, steps []tasks.StepOutcome) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tSTATUS\tATTEMPTS\tRESULT")
	for _, s := range steps {
		result := s.Output
		if s.Err != nil {
			result = s.Err.Error()
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", s.Index, s.Status, s.Attempts, summarize(result))
	}
	return tw.Flush()
}

func writeRecords(w io.Writer, steps []store.StepRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tSTATUS\tATTEMPTS\tDESCRIPTION\tRESULT")
	for _, s := range steps {
		result := s.Output
		if s.Error != "" {
			result = s.Error
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", s.Index, s.Status, s.Attempts, summarize(s.Description), summarize(result))
	}
	return tw.Flush()
}

// summarize returns the first line of s cut to summaryRunes.
func summarize(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if utf8.RuneCountInString(s) <= summaryRunes {
		return s
	}
	r := []rune(s)
	return string(r[:summaryRunes-1]) + "…"
}
