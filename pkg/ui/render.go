package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"prompthunter/pkg/models"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// RenderSummary prints a run summary with one row per source
func RenderSummary(w io.Writer, s *models.RunSummary) {
	if s == nil {
		fmt.Fprintln(w, "no run recorded")
		return
	}

	fmt.Fprintf(w, "%s %s\n", Cyan("Run"), s.RunID)
	fmt.Fprintf(w, "  started   %s\n", s.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  duration  %s\n", s.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  sources   %d total, %d scanned, %d skipped, %d failed\n",
		s.TotalSources, s.Scanned, s.Skipped, s.Failed)
	fmt.Fprintf(w, "  items     %d new, %d duplicates\n", s.ItemsIngested, s.Duplicates)
	fmt.Fprintf(w, "  spent     %d source requests, %d classification calls\n", s.RequestsUsed, s.ClassificationCalls)
	if s.StoppedReason != "" {
		fmt.Fprintf(w, "  stopped   %s\n", Yellow(s.StoppedReason))
	}

	if len(s.Sources) > 0 {
		fmt.Fprintln(w)
		tw := newTable(w)
		fmt.Fprintln(tw, "SOURCE\tSTATUS\tMODE\tREQ\tFETCHED\tANALYZED\tNEW\tDUP\tNOTE")
		for _, r := range s.Sources {
			fmt.Fprintf(tw, "@%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
				r.Handle, r.Status, dash(r.Mode), r.RequestsUsed, r.ItemsFetched, r.Analyzed,
				r.Inserted, r.Duplicates, sourceNote(r))
		}
		tw.Flush()
	}

	if len(s.Quotas) > 0 {
		fmt.Fprintln(w)
		RenderQuotas(w, s.Quotas)
	}
}

func sourceNote(r models.SourceResult) string {
	switch {
	case r.Error != "":
		return truncate(r.Error, 60)
	case r.SkipReason != "":
		return r.SkipReason
	default:
		return r.StopReason
	}
}

// RenderQuotas prints one bar per dimension
func RenderQuotas(w io.Writer, quotas []models.QuotaStatus) {
	for _, q := range quotas {
		fmt.Fprintln(w, QuotaLine(q))
	}
}

// RenderSources prints the registry, including when each source is next due
func RenderSources(w io.Writer, sources []models.Source, now time.Time, cooldown func(models.Priority) time.Duration) {
	if len(sources) == 0 {
		fmt.Fprintln(w, "no sources registered")
		return
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "HANDLE\tPRIORITY\tACTIVE\tUSER ID\tLAST SCAN\tLAST SEEN\tNEXT DUE")
	for _, s := range sources {
		lastScan, due := "never", "now"
		if s.LastScanAt != nil {
			lastScan = s.LastScanAt.Local().Format(time.DateTime)
			if next := s.LastScanAt.Add(cooldown(s.Priority)); next.After(now) {
				due = "in " + next.Sub(now).Round(time.Minute).String()
			}
		}
		if !s.IsActive {
			due = "-"
		}
		fmt.Fprintf(tw, "@%s\t%s\t%t\t%s\t%s\t%s\t%s\n",
			s.Handle, s.Priority, s.IsActive, dash(s.UserID), lastScan, dash(s.LastSeenItemID), due)
	}
	tw.Flush()
}

// RenderItems prints stored items, newest first
func RenderItems(w io.Writer, items []models.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no items")
		return
	}

	for _, it := range items {
		fmt.Fprintf(w, "%s  %s  %s  %.2f\n",
			Dim(it.IngestedAt.Local().Format(time.DateTime)),
			Magenta(string(it.Classification.Category)),
			"@"+it.SourceHandle,
			it.Classification.Confidence)
		fmt.Fprintf(w, "  %s\n", truncate(oneLine(it.Content), 120))
		fmt.Fprintf(w, "  %s\n", Dim(it.URL))
	}
}

// RenderEvents prints the operator feed, newest first
func RenderEvents(w io.Writer, events []models.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "no events")
		return
	}

	for _, e := range events {
		fmt.Fprintf(w, "%s  %-7s  %s%s\n",
			Dim(e.CreatedAt.Local().Format(time.DateTime)),
			kindColor(e.Kind)(string(e.Kind)),
			e.Message,
			Dim(formatDetails(e.Details)))
	}
}

func kindColor(kind models.EventKind) func(string) string {
	switch kind {
	case models.EventError:
		return Red
	case models.EventWarning:
		return Yellow
	case models.EventSuccess:
		return Green
	case models.EventScan:
		return Magenta
	default:
		return Cyan
	}
}

func formatDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, details[k])
	}
	return "  " + strings.Join(parts, " ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
