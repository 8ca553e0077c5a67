package results

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const maxDescriptionWidth = 60

// WriteReport renders records as a table: stage, outcome, duration, description.
func WriteReport(w io.Writer, recs []StageRecord) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Stage", "Outcome", "Duration", "Description"})

	var total time.Duration
	for _, r := range recs {
		total += r.Duration
		tw.AppendRow(table.Row{r.Name, string(r.Outcome), formatDuration(r.Duration), summarize(r.Description)})
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%d stages", len(recs)), "", formatDuration(total), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	tw.Render()
	return nil
}

// WriteReport renders the current run's records.
func (l *Ledger) WriteReport(w io.Writer) error {
	return WriteReport(w, l.Records())
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

// summarize keeps the first line of a description, truncated for table display.
func summarize(desc string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(desc), "\n")
	return text.Trim(line, maxDescriptionWidth)
}
