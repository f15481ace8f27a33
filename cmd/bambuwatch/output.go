package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/nerrad567/bambu-telemetry/internal/printer"
)

var (
	timeColor  = color.New(color.FgHiBlack)
	topicColor = color.New(color.FgCyan)
	fieldColor = color.New(color.FgYellow)
	newColor   = color.New(color.FgGreen, color.Bold)
)

// printDelta writes one line for an update: time, topic and every changed
// field. Fields never seen before are highlighted.
func printDelta(w io.Writer, prev printer.State, device *printer.Device) {
	changed := printer.ChangedFields(prev, device.State)

	parts := make([]string, 0, len(changed))
	for _, field := range changed {
		name := fieldColor.Sprint(field)
		if _, seen := prev[field]; !seen {
			name = newColor.Sprint("+" + field)
		}
		parts = append(parts, name+"="+formatValue(device.State[field]))
	}
	if len(parts) == 0 {
		parts = append(parts, "(no change)")
	}

	fmt.Fprintf(w, "%s %s #%d %s\n",
		timeColor.Sprint(device.UpdatedAt.Local().Format(time.TimeOnly)),
		topicColor.Sprint(device.Topic),
		device.Updates,
		strings.Join(parts, " "),
	)
}

// formatValue renders a state value on one line. Objects and arrays are
// summarised; the full value is available through --json.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case map[string]any:
		return fmt.Sprintf("{%d fields}", len(val))
	case []any:
		return fmt.Sprintf("[%d items]", len(val))
	default:
		return fmt.Sprint(val)
	}
}

// printJSON writes v as indented JSON, or compact when indent is false.
func printJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// snapshotColWidth caps the value column of the table output.
const snapshotColWidth = 80

// printTable writes the top-level fields of a snapshot, one per row.
func printTable(w io.Writer, device *printer.Device) {
	table := uitable.New()
	table.MaxColWidth = snapshotColWidth
	table.AddRow("FIELD", "VALUE")
	for _, field := range device.State.Fields() {
		table.AddRow(field, formatValue(device.State[field]))
	}
	fmt.Fprintln(w, table)
	fmt.Fprintf(w, "\n%s, %d updates, last at %s\n",
		device.Topic, device.Updates, device.UpdatedAt.Format(time.RFC3339))
}
