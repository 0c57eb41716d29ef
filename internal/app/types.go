package app

import (
	"github.com/ben-ranford/stripgate/internal/config"
	"github.com/ben-ranford/stripgate/internal/report"
)

type Mode string

const (
	ModeBuild Mode = "build"
	ModeStrip Mode = "strip"
)

type Request struct {
	Mode    Mode
	Root    string
	Verbose bool
	// ConfigPath and Sources describe where Values came from.
	ConfigPath string
	Sources    []string
	Values     config.Values
	Build      BuildRequest
	Strip      StripRequest
}

type BuildRequest struct {
	Format report.Format
	Write  bool
}

type StripRequest struct {
	File string
	// InlineMap appends the source map as a data URL comment.
	InlineMap bool
}

func DefaultRequest() Request {
	return Request{
		Mode:   ModeBuild,
		Root:   ".",
		Values: config.Defaults(),
		Build: BuildRequest{
			Format: report.FormatTable,
			Write:  true,
		},
	}
}
