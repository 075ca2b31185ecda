package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/control-assist/internal/config"
	"github.com/sells-group/control-assist/internal/model"
	"github.com/sells-group/control-assist/internal/monitoring"
	"github.com/sells-group/control-assist/internal/store"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect generation telemetry",
	Long:  "Commands for listing generation events and summarizing provider usage.",
}

// -- events list --

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generation events",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openEventStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		provider, _ := cmd.Flags().GetString("provider")
		control, _ := cmd.Flags().GetString("control")
		status, _ := cmd.Flags().GetString("status")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		filter := store.EventFilter{
			Provider:  model.ProviderKind(provider),
			ControlID: control,
			Status:    model.EventStatus(status),
			Limit:     limit,
		}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		events, err := st.ListGenerations(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "events list")
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), events)
		}
		if len(events) == 0 {
			fmt.Fprintln(os.Stderr, "No events found.")
			return nil
		}

		formatEventsList(cmd.OutOrStdout(), events)
		return nil
	},
}

// -- events stats --

var eventsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize calls, errors, latency and cost per provider",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openEventStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		var from time.Time
		if since > 0 {
			from = time.Now().Add(-since)
		}

		stats, err := st.GenerationStats(ctx, from)
		if err != nil {
			return eris.Wrap(err, "events stats")
		}
		if len(stats) == 0 {
			fmt.Fprintln(os.Stderr, "No events found.")
			return nil
		}

		formatStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

// -- events check --

var eventsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate provider health thresholds once and send any alerts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openEventStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		mcfg := cfg.Monitoring
		if h, _ := cmd.Flags().GetInt("lookback"); h > 0 {
			mcfg.LookbackWindowHours = h
		}

		checker := monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(mcfg), mcfg)
		alerts, err := checker.Check(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "events check")
		}
		formatAlerts(cmd.OutOrStdout(), alerts)
		return nil
	},
}

func openEventStore(cmd *cobra.Command) (store.Store, error) {
	if cfg.Store.Driver == config.DriverNone {
		return nil, eris.New("event store is disabled (store.driver = none)")
	}
	st, err := initStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(cmd.Context()); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func formatEventsList(w io.Writer, events []model.GenerationEvent) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tCONTROL\tPROVIDER\tMODEL\tATTEMPT\tSTATUS\tLATENCY\tTOKENS\tCOST\tERROR")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%dms\t%d/%d\t$%.6f\t%s\n",
			ev.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			ev.ControlID,
			ev.Provider,
			ev.Model,
			ev.Attempt,
			ev.Status,
			ev.LatencyMs,
			ev.PromptTokens,
			ev.ResponseTokens,
			ev.CostUSD,
			truncate(ev.Error, 60),
		)
	}
	tw.Flush() //nolint:errcheck
}

func formatStats(w io.Writer, stats []store.ProviderStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMODEL\tCALLS\tERRORS\tERROR RATE\tAVG LATENCY\tCOST")
	var calls, errs int64
	var total float64
	for _, s := range stats {
		rate := 0.0
		if s.Calls > 0 {
			rate = float64(s.Errors) / float64(s.Calls) * 100
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f%%\t%.0fms\t$%.4f\n",
			s.Provider, s.Model, s.Calls, s.Errors, rate, s.AvgLatencyMs, s.CostUSD)
		calls += s.Calls
		errs += s.Errors
		total += s.CostUSD
	}
	fmt.Fprintf(tw, "TOTAL\t\t%d\t%d\t\t\t$%.4f\n", calls, errs, total)
	tw.Flush() //nolint:errcheck
}

func formatAlerts(w io.Writer, alerts []monitoring.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, "All providers healthy.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tTYPE\tMESSAGE")
	for _, a := range alerts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Severity, a.Type, a.Message)
	}
	tw.Flush() //nolint:errcheck
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	eventsListCmd.Flags().String("provider", "", "filter by provider (local, cloud-chat, cloud-converse)")
	eventsListCmd.Flags().String("control", "", "filter by control ID")
	eventsListCmd.Flags().String("status", "", "filter by status (success, error)")
	eventsListCmd.Flags().Duration("since", 0, "only events newer than this, e.g. 24h")
	eventsListCmd.Flags().Int("limit", store.DefaultListLimit, "max events to show")
	eventsListCmd.Flags().Bool("json", false, "print JSON instead of a table")

	eventsStatsCmd.Flags().Duration("since", 0, "only events newer than this, e.g. 168h")

	eventsCheckCmd.Flags().Int("lookback", 0, "lookback window in hours (default from config)")

	eventsCmd.AddCommand(eventsListCmd, eventsStatsCmd, eventsCheckCmd)
	rootCmd.AddCommand(eventsCmd)
}
