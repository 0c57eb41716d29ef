package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ben-ranford/stripgate/internal/app"
	"github.com/ben-ranford/stripgate/internal/config"
	"github.com/ben-ranford/stripgate/internal/report"
)

var ErrHelpRequested = errors.New("help requested")

func ParseArgs(args []string) (app.Request, error) {
	req := app.DefaultRequest()
	if len(args) == 0 {
		return req, ErrHelpRequested
	}

	if isHelpArg(args[0]) {
		return req, ErrHelpRequested
	}

	switch args[0] {
	case "build":
		return parseBuild(args[1:], req)
	case "strip":
		return parseStrip(args[1:], req)
	default:
		return req, fmt.Errorf("unknown command: %s", args[0])
	}
}

// sharedFlags are accepted by every command and feed config overrides.
type sharedFlags struct {
	root       *string
	configPath *string
	mode       *string
	applyInDev *bool
	verbose    *bool
}

func registerShared(fs *flag.FlagSet, req app.Request) sharedFlags {
	return sharedFlags{
		root:       fs.String("root", req.Root, "project root"),
		configPath: fs.String("config", "", "config file path"),
		mode:       fs.String("mode", config.DefaultMode, "build mode"),
		applyInDev: fs.Bool("apply-in-dev", config.DefaultApplyInDev, "strip and verify outside production"),
		verbose:    fs.Bool("verbose", false, "log strip decisions to stderr"),
	}
}

func parseBuild(args []string, req app.Request) (app.Request, error) {
	args = normalizeArgs(args)

	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	shared := registerShared(fs, req)
	outDir := fs.String("outdir", config.DefaultOutDir, "output directory")
	format := fs.String("format", config.DefaultFormat, "output module format")
	platform := fs.String("platform", config.DefaultPlatform, "target platform")
	sourcemap := fs.Bool("sourcemap", false, "write source maps")
	forceSourcemap := fs.Bool("force-sourcemap", config.DefaultForceSourcemap, "generate maps for verification")
	minify := fs.Bool("minify", false, "minify output")
	noWrite := fs.Bool("no-write", false, "do not write outputs")
	reportFlag := fs.String("report", string(req.Build.Format), "report format")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return req, ErrHelpRequested
		}
		return req, err
	}

	reportFormat, err := report.ParseFormat(*reportFlag)
	if err != nil {
		return req, err
	}
	visited := visitedFlags(fs)

	overrides := sharedOverrides(shared, visited)
	if entries := trimmedArgs(fs.Args()); len(entries) > 0 {
		overrides.EntryPoints = entries
	}
	if visited["outdir"] {
		overrides.OutDir = outDir
	}
	if visited["format"] {
		overrides.Format = format
	}
	if visited["platform"] {
		overrides.Platform = platform
	}
	if visited["sourcemap"] {
		overrides.Sourcemap = sourcemap
	}
	if visited["force-sourcemap"] {
		overrides.ForceSourcemap = forceSourcemap
	}
	if visited["minify"] {
		overrides.Minify = minify
	}

	req, err = resolveConfig(req, shared, overrides)
	if err != nil {
		return req, err
	}
	if len(req.Values.EntryPoints) == 0 {
		return req, fmt.Errorf("missing entry points: pass them as arguments or set entry_points in config")
	}

	req.Mode = app.ModeBuild
	req.Build = app.BuildRequest{Format: reportFormat, Write: !*noWrite}
	return req, nil
}

func parseStrip(args []string, req app.Request) (app.Request, error) {
	args = normalizeArgs(args)

	fs := flag.NewFlagSet("strip", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	shared := registerShared(fs, req)
	inlineMap := fs.Bool("inline-map", false, "append an inline source map")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return req, ErrHelpRequested
		}
		return req, err
	}

	remaining := trimmedArgs(fs.Args())
	if len(remaining) == 0 {
		return req, fmt.Errorf("missing file to strip")
	}
	if len(remaining) > 1 {
		return req, fmt.Errorf("too many arguments for strip")
	}

	req, err := resolveConfig(req, shared, sharedOverrides(shared, visitedFlags(fs)))
	if err != nil {
		return req, err
	}

	req.Mode = app.ModeStrip
	req.Strip = app.StripRequest{File: remaining[0], InlineMap: *inlineMap}
	return req, nil
}

func sharedOverrides(shared sharedFlags, visited map[string]bool) config.Overrides {
	overrides := config.Overrides{}
	if visited["mode"] {
		overrides.Mode = shared.mode
	}
	if visited["apply-in-dev"] {
		overrides.ApplyInDev = shared.applyInDev
	}
	return overrides
}

// resolveConfig layers flags over the config file over defaults.
func resolveConfig(req app.Request, shared sharedFlags, overrides config.Overrides) (app.Request, error) {
	root := strings.TrimSpace(*shared.root)
	if root == "" {
		return req, fmt.Errorf("--root must not be empty")
	}
	loaded, err := config.Load(root, strings.TrimSpace(*shared.configPath))
	if err != nil {
		return req, err
	}
	values := overrides.Apply(loaded.Resolved)
	if err := values.Validate(); err != nil {
		return req, err
	}

	req.Root = root
	req.Verbose = *shared.verbose
	req.ConfigPath = loaded.ConfigPath
	req.Sources = loaded.Sources
	req.Values = values
	return req, nil
}

func trimmedArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func isHelpArg(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	default:
		return false
	}
}

func normalizeArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	flags := make([]string, 0, len(args))
	positionals := make([]string, 0, 1)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positionals = append(positionals, args[i+1:]...)
			break
		}
		if strings.HasPrefix(arg, "-") {
			flags = append(flags, arg)
			if flagNeedsValue(arg) && i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positionals = append(positionals, arg)
	}

	return append(flags, positionals...)
}

func flagNeedsValue(arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	switch strings.TrimLeft(arg, "-") {
	case "root", "config", "mode", "outdir", "format", "platform", "report":
		return true
	default:
		return false
	}
}

func visitedFlags(fs *flag.FlagSet) map[string]bool {
	visited := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		visited[f.Name] = true
	})
	return visited
}
