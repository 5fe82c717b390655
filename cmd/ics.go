package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/timeutil"
)

func newExportCmd() *cobra.Command {
	var (
		user, from, to, tags, output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export calendar events as iCalendar (.ics)",
		Long: `Write the user's events as an RFC 5545 iCalendar document.

--from and --to accept RFC 3339 timestamps, dates or relative phrases
("today", "next monday"). Without them every event is exported.`,
		Example: `  calendaragent export --from today --to "in 7 days" -o week.ics
  calendaragent export --tags work,meeting`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := newApp(ctx, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			doc, n, err := exportEvents(ctx, a.sc, resolveUser(user), from, to, parseCommaSeparatedList(tags))
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), doc)
				return err
			}
			if err := os.WriteFile(output, []byte(doc), 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d event(s) to %s\n", n, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Calendar owner. Can also use CALENDARAGENT_USER env var.")
	cmd.Flags().StringVar(&from, "from", "", "Start of the export window")
	cmd.Flags().StringVar(&to, "to", "", "End of the export window")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags every exported event must carry")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newImportCmd() *cobra.Command {
	var (
		user  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.ics>",
		Short: "Import events from an iCalendar (.ics) file",
		Long: `Add every VEVENT in the file to the user's calendar. Events that overlap
existing confirmed events are skipped and reported unless --force is set.
Recurring events (RRULE) are expanded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := newApp(ctx, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			report, err := importEvents(ctx, a.sc, resolveUser(user), f, force)
			if err != nil {
				return err
			}
			report.print(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Calendar owner. Can also use CALENDARAGENT_USER env var.")
	cmd.Flags().BoolVar(&force, "force", false, "Add events even when they conflict with existing ones")
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// exportEvents renders the user's events in [from, to) as iCalendar and
// reports how many were written. Empty bounds are open.
func exportEvents(ctx context.Context, sc *server.ServerContext, userID, from, to string, tags []string) (string, int, error) {
	var window calendar.TimeRange
	now := sc.Now()
	if from != "" {
		t, ok := timeutil.Parse(now, from)
		if !ok {
			return "", 0, fmt.Errorf("invalid --from value %q", from)
		}
		window.Start = t
	}
	if to != "" {
		t, ok := timeutil.Parse(now, to)
		if !ok {
			return "", 0, fmt.Errorf("invalid --to value %q", to)
		}
		window.End = t
	}
	if !window.Start.IsZero() && !window.End.IsZero() && !window.End.After(window.Start) {
		return "", 0, fmt.Errorf("--to must be after --from")
	}

	events, err := sc.Engine().List(ctx, userID, calendar.ListQuery{Range: window, Tags: tags})
	if err != nil {
		return "", 0, fmt.Errorf("failed to list events: %w", err)
	}
	return calendar.ExportICS(events), len(events), nil
}

type importReport struct {
	Added     int
	Skipped   []string
	Forced    []string
	Failed    []string
	Warnings  []string
	Processed int
}

func (r importReport) print(w io.Writer) {
	fmt.Fprintf(w, "Imported %d of %d event(s)\n", r.Added, r.Processed)
	for _, s := range r.Forced {
		fmt.Fprintf(w, "  forced:   %s\n", s)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  conflict: %s\n", s)
	}
	for _, s := range r.Failed {
		fmt.Fprintf(w, "  failed:   %s\n", s)
	}
	for _, s := range r.Warnings {
		fmt.Fprintf(w, "  warning:  %s\n", s)
	}
}

// importEvents adds every event of an iCalendar document to the user's
// calendar, one draft at a time.
func importEvents(ctx context.Context, sc *server.ServerContext, userID string, r io.Reader, force bool) (importReport, error) {
	drafts, warnings, err := calendar.ImportICS(r, sc.Location())
	if err != nil {
		return importReport{}, err
	}

	report := importReport{Warnings: warnings, Processed: len(drafts)}
	engine := sc.Engine()
	for _, in := range drafts {
		label := fmt.Sprintf("%s (%s)", in.Title, in.Start.Format("2006-01-02 15:04"))
		res, err := engine.Add(ctx, userID, in, force)
		if err != nil {
			report.Failed = append(report.Failed, fmt.Sprintf("%s: %v", label, err))
			continue
		}
		if res.Status == calendar.ResultConflict {
			report.Skipped = append(report.Skipped, fmt.Sprintf("%s overlaps %d event(s)", label, len(res.Conflicts)))
			continue
		}
		if res.Forced {
			report.Forced = append(report.Forced, label)
		}
		report.Added++
		sc.Metrics().RecordCalendarMutation(ctx, "import_event", string(res.Status))
	}
	return report, nil
}
