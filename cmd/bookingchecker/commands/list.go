package commands

import (
	"io"
	"os"

	"bookingchecker/internal/checker"
	"bookingchecker/internal/components/telemetry"
	"bookingchecker/internal/config"
	"bookingchecker/internal/scrapers/elevcentralen"
	"bookingchecker/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

func newTable(out io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Slot", "Teacher", "Date", "Time"})
	return t
}

func renderBookings(out io.Writer, title string, bookings []elevcentralen.Booking) {
	t := newTable(out, title)
	for _, b := range bookings {
		t.AppendRow(table.Row{
			b.SlotId,
			b.Teacher,
			b.Date().String(),
			b.Start.Format("15:04") + " - " + b.End.Format("15:04"),
		})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(bookings)})
	t.Render()
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Prints your current bookings and the available lessons, without notifying.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := config.Load(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		a, err := newApp(ctx, cfg, telemetry.NewSlogAPI(nil), *dumpHttp)
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer a.close()

		err = a.authenticate(ctx)
		if err != nil {
			a.close()
			serviceutil.Fatal("failed to login", err)
		}

		current, err := a.session.CurrentBookings(ctx)
		if err != nil {
			a.close()
			serviceutil.Fatal("failed to fetch current bookings", err)
		}
		available, err := a.session.AvailableBookings(ctx, elevcentralen.AvailableQuery{
			TeacherId: cfg.Elevcentralen.TeacherId,
		}).Collect()
		if err != nil {
			a.close()
			serviceutil.Fatal("failed to fetch available bookings", err)
		}

		renderBookings(os.Stdout, "Current bookings", current)
		renderBookings(os.Stdout, "Available bookings", available)

		notified := a.cache.Load(ctx)
		decision := checker.Evaluate(current, available, notified)
		if decision.Action == checker.Notify {
			renderBookings(os.Stdout, "Not yet notified", unnotified(decision.Candidates, notified))
		}
	},
}

func unnotified(candidates, notified []elevcentralen.Booking) []elevcentralen.Booking {
	var out []elevcentralen.Booking
	for _, c := range candidates {
		if !elevcentralen.ContainsBooking(notified, c) {
			out = append(out, c)
		}
	}
	return out
}
