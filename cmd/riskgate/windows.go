package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"riskgate/internal/blackout"
	"riskgate/internal/calendar"
	"riskgate/internal/config"
)

func runWindows(ctx context.Context, out io.Writer, cfg *config.Config) error {
	src := calendarSource(cfg)
	if src == nil {
		return errors.New("set --calendar-url or --calendar-file")
	}
	store := blackout.NewStore()
	refresher := calendar.NewRefresher(src, cfg.NewsFilter(), store, nil, cfg.CalendarRefresh)
	if err := refresher.RefreshOnce(ctx); err != nil {
		return err
	}
	return printWindows(out, store.Windows(), cfg.Location)
}

func printWindows(out io.Writer, windows []blackout.Window, loc *time.Location) error {
	if len(windows) == 0 {
		_, err := fmt.Fprintln(out, "no blackout windows")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tEVENT")
	for _, w := range windows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", w.Start.In(loc).Format(time.DateTime), w.End.In(loc).Format(time.DateTime), w.Label)
	}
	return tw.Flush()
}
