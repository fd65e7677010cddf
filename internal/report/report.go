// Package report renders run summaries for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/saaga0h/jeeves-screentime/internal/timebin"
)

const barWidth = 40

// HourStat is the mean share of an hour-of-day spent on screen, in percent
type HourStat struct {
	Short float64
	Long  float64
	Rows  int
}

// Total returns the combined short and long share
func (h HourStat) Total() float64 {
	return h.Short + h.Long
}

// HourlyProfile averages the scaled screentime of every row by UTC hour of
// its bucket start
func HourlyProfile(rows []timebin.Row) [24]HourStat {
	var sums [24]HourStat
	for _, r := range rows {
		hour := ((r.TimebinStart % 86400) + 86400) % 86400 / 3600
		sums[hour].Short += float64(r.ScreentimeShort)
		sums[hour].Long += float64(r.ScreentimeLong)
		sums[hour].Rows++
	}

	for h := range sums {
		if sums[h].Rows > 0 {
			sums[h].Short /= float64(sums[h].Rows)
			sums[h].Long /= float64(sums[h].Rows)
		}
	}
	return sums
}

// WriteSubject prints a one-line summary and the hourly profile of a result
func WriteSubject(w io.Writer, res *timebin.Result) {
	bold := color.New(color.Bold)
	short := color.New(color.FgYellow)
	long := color.New(color.FgBlue)
	grey := color.New(color.FgHiBlack)

	c := res.Counts
	fmt.Fprintf(w, "%s  rows=%d sessions=%d invalid_buckets=%d events=%d twins=%d dropped=%d\n",
		bold.Sprint(res.Subject), len(res.Rows), c.Sessions, c.InvalidBuckets, c.Events, c.Twins, c.DroppedSessions)
	if c.UnterminatedAtEnd {
		fmt.Fprintln(w, grey.Sprint("   trailing session without off event discarded"))
	}

	profile := HourlyProfile(res.Rows)
	maxTotal := 0.0
	for _, h := range profile {
		maxTotal = max(maxTotal, h.Total())
	}
	if maxTotal == 0 {
		fmt.Fprintln(w, grey.Sprint("   no screen time"))
		return
	}

	fmt.Fprintf(w, "   %s %s\n", short.Sprint("█ short"), long.Sprint("█ long"))
	for hour, h := range profile {
		shortLen := int(h.Short / maxTotal * barWidth)
		longLen := int(h.Long / maxTotal * barWidth)

		line := fmt.Sprintf("   %02d:00 %5.1f%% ", hour, h.Total())
		line += short.Sprint(strings.Repeat("█", shortLen))
		line += long.Sprint(strings.Repeat("█", longLen))
		if shortLen+longLen == 0 && h.Total() > 0 {
			line += grey.Sprint("·")
		}
		fmt.Fprintln(w, line)
	}
}

// Failure is a subject whose output was discarded
type Failure struct {
	Subject string
	Err     error
}

// WriteRun prints every result followed by the failed subjects
func WriteRun(w io.Writer, results []*timebin.Result, failures []Failure) {
	for _, res := range results {
		WriteSubject(w, res)
		fmt.Fprintln(w)
	}

	red := color.New(color.FgRed)
	for _, f := range failures {
		fmt.Fprintf(w, "%s %s: %v\n", red.Sprint("✗"), f.Subject, f.Err)
	}

	fmt.Fprintf(w, "%d subjects processed, %d failed\n", len(results), len(failures))
}
