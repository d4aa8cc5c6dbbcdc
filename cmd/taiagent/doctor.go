package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taiagent/taiagent/internal/health"
	"github.com/taiagent/taiagent/internal/ollama"
	"github.com/taiagent/taiagent/internal/registry"
)

const (
	probeTimeout     = 5 * time.Second
	doctorErrorLimit = 5
)

func newDoctorCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, database and provider",
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

			report := a.checkHealth(cmd.Context())
			if a.logs != nil {
				recent, err := a.logs.Recent(cmd.Context(), "error", "", doctorErrorLimit)
				if err != nil {
					a.logger.Warn("recent errors unavailable", "component", "store", "error", err)
				}
				report.Errors = recent
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return writeReport(out, report)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

// checkHealth registers every component and runs the checks. A provider that
// cannot be built is reported, not returned.
func (a *app) checkHealth(ctx context.Context) health.HealthReport {
	reg := health.NewRegistry()
	reg.Register("config", health.CheckFunc(func() health.ComponentHealth {
		return health.ComponentHealth{
			Name:    "config",
			Status:  health.StatusOK,
			Message: fmt.Sprintf("%s/%s, config dir %s", a.cfg.Provider, a.cfg.Model, a.cfg.ConfigDir),
			LastOK:  time.Now(),
		}
	}))
	if a.db != nil {
		reg.Register("database", a.db)
	}

	client, err := registry.NewClient(a.cfg)
	switch c := client.(type) {
	case nil:
		reg.Register("provider", health.CheckFunc(func() health.ComponentHealth {
			return health.ComponentHealth{Name: a.cfg.Provider, Status: health.StatusError, Message: err.Error(), LastError: time.Now()}
		}))
	case *ollama.Client:
		reg.Register("provider", health.CheckFunc(func() health.ComponentHealth {
			return probeOllama(ctx, c)
		}))
	case health.HealthChecker:
		reg.Register("provider", c)
	}
	return reg.Check()
}

// probeOllama asks the local server for its version.
func probeOllama(ctx context.Context, c *ollama.Client) health.ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	v, err := c.Version(ctx)
	if err != nil {
		return health.ComponentHealth{Name: "ollama", Status: health.StatusError, Message: err.Error(), LastError: time.Now()}
	}
	return health.ComponentHealth{Name: "ollama", Status: health.StatusOK, Message: "server " + v + " at " + c.BaseURL, LastOK: time.Now()}
}

func writeReport(w io.Writer, report health.HealthReport) error {
	fmt.Fprintf(w, "status: %s\n", report.Status)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range report.Names() {
		c := report.Components[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, c.Status, c.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(report.Errors) > 0 {
		fmt.Fprintln(w, "recent errors:")
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s [%s] %s\n", e.Timestamp.Local().Format(time.DateTime), e.Component, e.Message)
		}
	}
	return nil
}
