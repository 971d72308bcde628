package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/unklstewy/flighttrail/internal/collector"
	"github.com/unklstewy/flighttrail/internal/db"
	"github.com/unklstewy/flighttrail/pkg/coordinates"
	"github.com/unklstewy/flighttrail/pkg/flight"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// writeJSON prints v indented.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table renders rows in padded columns with a styled header.
func table(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	pad := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(pad(headers)))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(pad(row))
		b.WriteString("\n")
	}
	return b.String()
}

func renderSummary(s collector.JobSummary) string {
	var b strings.Builder
	status := okStyle.Render("completed")
	if !s.Success {
		status = errorStyle.Render("interrupted")
	}
	b.WriteString(titleStyle.Render("Collection job " + status))
	b.WriteString("\n")

	rows := make([][]string, 0, len(s.Regions))
	for _, r := range s.Regions {
		errText := ""
		if r.Error != "" {
			errText = errorStyle.Render(r.Error)
		}
		rows = append(rows, []string{
			string(r.Region),
			fmt.Sprint(r.Fetched),
			fmt.Sprint(r.Saved),
			fmt.Sprint(r.Skipped),
			errText,
		})
	}
	b.WriteString(table([]string{"REGION", "FETCHED", "SAVED", "SKIPPED", "ERROR"}, rows))

	fmt.Fprintf(&b, "\nTotal: %d fetched, %d saved, %d skipped in %dms\n",
		s.Totals.Fetched, s.Totals.Saved, s.Totals.Skipped, s.DurationMs)
	fmt.Fprintf(&b, "Cleanup: %d expired records deleted\n", s.Cleanup.Deleted)
	if s.RateLimit.Remaining != nil {
		fmt.Fprintf(&b, "Feed credits remaining: %d\n", *s.RateLimit.Remaining)
	} else {
		b.WriteString(dimStyle.Render("Feed credits remaining: unknown"))
		b.WriteString("\n")
	}
	return b.String()
}

func renderTrajectories(trajectories []flight.Trajectory, hours float64) string {
	if len(trajectories) == 0 {
		return dimStyle.Render(fmt.Sprintf("No trajectories in the last %g hours", hours)) + "\n"
	}

	rows := make([][]string, 0, len(trajectories))
	for _, t := range trajectories {
		rows = append(rows, []string{
			t.ICAO24,
			t.Callsign,
			fmt.Sprint(len(t.Points)),
			t.Start.Timestamp.Local().Format(time.TimeOnly),
			t.End.Timestamp.Local().Format(time.TimeOnly),
			fmt.Sprintf("%.4f, %.4f", t.End.Lat, t.End.Lng),
		})
	}
	return titleStyle.Render(fmt.Sprintf("%d trajectories, last %g hours", len(trajectories), hours)) + "\n" +
		table([]string{"ICAO24", "CALLSIGN", "POINTS", "FIRST", "LAST", "LAST POSITION"}, rows)
}

func renderTrajectory(t flight.Trajectory, current *flight.Point) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%s)", t.Callsign, t.ICAO24)))
	b.WriteString("\n")

	rows := make([][]string, 0, len(t.Points))
	for _, p := range t.Points {
		rows = append(rows, []string{
			p.Timestamp.Local().Format(time.DateTime),
			fmt.Sprintf("%.5f", p.Lat),
			fmt.Sprintf("%.5f", p.Lng),
		})
	}
	b.WriteString(table([]string{"TIME", "LAT", "LNG"}, rows))
	fmt.Fprintf(&b, "Path: %.1f nm, last bearing %03.0f°\n", pathLengthNM(t.Points), lastBearing(t.Points))

	if current != nil {
		b.WriteString(okStyle.Render(fmt.Sprintf("Current position: %.5f, %.5f", current.Lat, current.Lng)))
	} else {
		b.WriteString(warnStyle.Render("No current position: last report is stale"))
	}
	b.WriteString("\n")
	return b.String()
}

// pathLengthNM sums the great-circle legs between consecutive points.
func pathLengthNM(points []flight.Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += coordinates.DistanceNauticalMiles(geographic(points[i-1]), geographic(points[i]))
	}
	return total
}

func lastBearing(points []flight.Point) float64 {
	if len(points) < 2 {
		return 0
	}
	return coordinates.Bearing(geographic(points[len(points)-2]), geographic(points[len(points)-1]))
}

func geographic(p flight.Point) coordinates.Geographic {
	return coordinates.Geographic{Latitude: p.Lat, Longitude: p.Lng}
}

func renderHistory(icao string, records []flight.Record) string {
	if len(records) == 0 {
		return dimStyle.Render("No records for "+icao) + "\n"
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.RecordedAt.Local().Format(time.DateTime),
			string(r.Region),
			string(r.Source),
			fmt.Sprintf("%.5f, %.5f", r.Lat, r.Lng),
			fmt.Sprintf("%.0f", r.Altitude*coordinates.MetersToFeet),
			fmt.Sprintf("%.0f", r.Velocity*coordinates.MetersPerSecondToKnots),
		})
	}
	return titleStyle.Render(fmt.Sprintf("%d records for %s", len(records), icao)) + "\n" +
		table([]string{"RECORDED", "REGION", "SOURCE", "POSITION", "ALT (ft)", "SPEED (kt)"}, rows)
}

func renderSettings(s flight.Settings) string {
	refresh := fmt.Sprintf("%ds", s.RefreshInterval)
	if s.RefreshInterval == 0 {
		refresh = warnStyle.Render("polling disabled")
	}
	rows := [][]string{
		{flight.SettingRefreshInterval, refresh},
		{flight.SettingRetentionDays, fmt.Sprintf("%d days", s.RetentionDays)},
		{flight.SettingClientTracking, fmt.Sprint(s.ClientTracking)},
	}
	return table([]string{"SETTING", "VALUE"}, rows)
}

func renderStats(s *db.Stats) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Position ledger"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Records:  %d\n", s.PositionRecords)
	fmt.Fprintf(&b, "Aircraft: %d\n", s.Aircraft)
	if s.Oldest != nil && s.Newest != nil {
		fmt.Fprintf(&b, "Span:     %s to %s\n",
			s.Oldest.Local().Format(time.DateTime), s.Newest.Local().Format(time.DateTime))
	}

	rows := make([][]string, 0, len(s.ByRegion))
	for _, r := range flight.LedgerRegions() {
		rows = append(rows, []string{string(r), fmt.Sprint(s.ByRegion[string(r)])})
	}
	b.WriteString("\n")
	b.WriteString(table([]string{"REGION", "RECORDS"}, rows))

	rows = rows[:0]
	for _, src := range []flight.Source{flight.SourceCron, flight.SourceClient} {
		rows = append(rows, []string{string(src), fmt.Sprint(s.BySource[string(src)])})
	}
	b.WriteString("\n")
	b.WriteString(table([]string{"SOURCE", "RECORDS"}, rows))
	return b.String()
}
