package cli

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ben-ranford/stripgate/internal/app"
	"github.com/ben-ranford/stripgate/internal/config"
	"github.com/ben-ranford/stripgate/internal/report"
	"github.com/ben-ranford/stripgate/internal/testutil"
)

const parseErrFmt = "parse args: %v"

func TestParseArgsHelp(t *testing.T) {
	for _, args := range [][]string{nil, {"help"}, {"-h"}, {"build", "--help"}, {"strip", "-h"}} {
		if _, err := ParseArgs(args); !errors.Is(err, ErrHelpRequested) {
			t.Fatalf("expected help for %v, got %v", args, err)
		}
	}
}

func TestParseBuildDefaults(t *testing.T) {
	root := t.TempDir()
	req, err := ParseArgs([]string{"build", "src/index.ts", "--root", root})
	if err != nil {
		t.Fatalf(parseErrFmt, err)
	}
	if req.Mode != app.ModeBuild || req.Root != root || !req.Build.Write || req.Build.Format != report.FormatTable {
		t.Fatalf("unexpected request %+v", req)
	}
	want := config.Defaults()
	want.EntryPoints = []string{"src/index.ts"}
	if diff := cmp.Diff(want, req.Values); diff != "" {
		t.Fatalf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestParseBuildFlagsOverrideConfig(t *testing.T) {
	root := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(root, ".stripgate.yml"), strings.Join([]string{
		"entry_points: [from-config.ts]",
		"outdir: config-out",
		"format: cjs",
		"rules:",
		"  - attributes: {only: dev}",
		"",
	}, "\n"))

	req, err := ParseArgs([]string{
		"build", "--root", root, "--outdir", "flag-out", "--mode", "development",
		"--apply-in-dev", "--sourcemap", "--minify", "--no-write", "--report", "json", "--verbose",
	})
	if err != nil {
		t.Fatalf(parseErrFmt, err)
	}
	values := req.Values
	if values.OutDir != "flag-out" || values.Format != "cjs" || values.Mode != config.ModeDevelopment {
		t.Fatalf("unexpected precedence: %+v", values)
	}
	if !values.ApplyInDev || !values.Sourcemap || !values.Minify || len(values.Rules) != 1 {
		t.Fatalf("unexpected values: %+v", values)
	}
	if diff := cmp.Diff([]string{"from-config.ts"}, values.EntryPoints); diff != "" {
		t.Fatalf("unexpected entry points (-want +got):\n%s", diff)
	}
	if req.Build.Write || req.Build.Format != report.FormatJSON || !req.Verbose {
		t.Fatalf("unexpected build request: %+v verbose=%v", req.Build, req.Verbose)
	}
	if !strings.HasSuffix(req.ConfigPath, ".stripgate.yml") {
		t.Fatalf("expected config path, got %q", req.ConfigPath)
	}
}

func TestParseBuildErrors(t *testing.T) {
	root := t.TempDir()
	cases := map[string][]string{
		"no entries":   {"build", "--root", root},
		"bad report":   {"build", "a.ts", "--root", root, "--report", "sarif"},
		"bad format":   {"build", "a.ts", "--root", root, "--format", "amd"},
		"unknown flag": {"build", "a.ts", "--root", root, "--watch"},
		"missing file": {"build", "a.ts", "--root", root, "--config", "missing.yml"},
		"empty root":   {"build", "a.ts", "--root", " "},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseArgs(args); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}

func TestParseStrip(t *testing.T) {
	root := t.TempDir()
	req, err := ParseArgs([]string{"strip", "--inline-map", "src/a.ts", "--root", root, "--mode=development"})
	if err != nil {
		t.Fatalf(parseErrFmt, err)
	}
	if req.Mode != app.ModeStrip || req.Strip.File != "src/a.ts" || !req.Strip.InlineMap {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Values.Mode != config.ModeDevelopment {
		t.Fatalf("expected development mode, got %q", req.Values.Mode)
	}

	if _, err := ParseArgs([]string{"strip", "--root", root}); err == nil || !strings.Contains(err.Error(), "missing file") {
		t.Fatalf("expected missing file error, got %v", err)
	}
	if _, err := ParseArgs([]string{"strip", "a.ts", "b.ts", "--root", root}); err == nil {
		t.Fatalf("expected too many arguments error")
	}
}

func TestNormalizeArgsMovesFlagsFirst(t *testing.T) {
	got := normalizeArgs([]string{"a.ts", "--root", "/r", "b.ts", "--sourcemap", "--", "--odd.ts"})
	want := []string{"--root", "/r", "--sourcemap", "a.ts", "b.ts", "--odd.ts"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected normalized args (-want +got):\n%s", diff)
	}
}
