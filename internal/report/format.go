package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
)

type Formatter struct{}

func NewFormatter() Formatter {
	return Formatter{}
}

func (f Formatter) Format(report Report, format Format) (string, error) {
	switch format {
	case FormatTable:
		return formatTable(report), nil
	case FormatJSON:
		payload, err := json.MarshalIndent(normalize(report), "", "  ")
		if err != nil {
			return "", err
		}
		return string(payload) + "\n", nil
	default:
		return "", ErrUnknownFormat
	}
}

// normalize swaps nil slices for empty ones so the JSON shape is stable.
func normalize(report Report) Report {
	if report.Files == nil {
		report.Files = []FileResult{}
	}
	files := make([]FileResult, len(report.Files))
	for i, file := range report.Files {
		if file.StrippedSpecifiers == nil {
			file.StrippedSpecifiers = []string{}
		}
		if file.StrippedNames == nil {
			file.StrippedNames = []string{}
		}
		files[i] = file
	}
	report.Files = files
	return report
}

func formatTable(report Report) string {
	var buffer bytes.Buffer
	appendSummary(&buffer, report)

	if len(report.Files) > 0 {
		writer := tabwriter.NewWriter(&buffer, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(writer, "File\tStripped Imports\tBindings")
		for _, file := range report.Files {
			_, _ = fmt.Fprintf(writer, "%s\t%s\t%s\n", file.Path, joinOrDash(file.StrippedSpecifiers), joinOrDash(file.StrippedNames))
		}
		_ = writer.Flush()
		buffer.WriteString("\n")
	}

	if len(report.Chunks) > 0 {
		writer := tabwriter.NewWriter(&buffer, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(writer, "Output\tKind\tModules")
		for _, chunk := range report.Chunks {
			_, _ = fmt.Fprintf(writer, "%s\t%s\t%d\n", chunk.File, chunk.Kind, len(chunk.Modules))
		}
		_ = writer.Flush()
		buffer.WriteString("\n")
	}

	appendList(&buffer, "Verification errors", report.Errors)
	appendList(&buffer, "Warnings", report.Warnings)
	return buffer.String()
}

func appendSummary(buffer *bytes.Buffer, report Report) {
	state := "off"
	if report.StripActive {
		state = "on"
	}
	_, _ = fmt.Fprintf(buffer, "Mode: %s, strip phase: %s, stripped imports: %d in %d files\n\n", report.Mode, state, report.StrippedCount(), len(report.Files))
}

func appendList(buffer *bytes.Buffer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	buffer.WriteString(title)
	buffer.WriteString(":\n")
	for _, item := range items {
		buffer.WriteString("- ")
		buffer.WriteString(item)
		buffer.WriteString("\n")
	}
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
