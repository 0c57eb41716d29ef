package report

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

const SchemaVersion = "0.1.0"

var ErrUnknownFormat = errors.New("unknown format")

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, value)
	}
}

// Report summarizes one build or single-file strip run.
type Report struct {
	SchemaVersion string        `json:"schemaVersion"`
	GeneratedAt   time.Time     `json:"generatedAt"`
	Root          string        `json:"root"`
	Mode          string        `json:"mode"`
	StripActive   bool          `json:"stripActive"`
	Files         []FileResult  `json:"files"`
	Chunks        []ChunkResult `json:"chunks,omitempty"`
	Written       []string      `json:"written,omitempty"`
	Errors        []string      `json:"errors,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
}

type FileResult struct {
	Path               string   `json:"path"`
	StrippedSpecifiers []string `json:"strippedSpecifiers"`
	StrippedNames      []string `json:"strippedNames"`
}

type ChunkResult struct {
	File    string   `json:"file"`
	Kind    string   `json:"kind"`
	Modules []string `json:"modules"`
}

func (r Report) StrippedCount() int {
	count := 0
	for _, file := range r.Files {
		count += len(file.StrippedSpecifiers)
	}
	return count
}
