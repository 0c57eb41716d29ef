package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer

	code := run(context.Background(), []string{"--help"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0 for help, got %d", code)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Fatalf("expected usage output on stdout, got %q", out.String())
	}
	if errOut.Len() != 0 {
		t.Fatalf("expected no stderr output for help, got %q", errOut.String())
	}
}

func TestRunParseError(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer

	code := run(context.Background(), []string{"nope"}, &out, &errOut)
	if code != 2 {
		t.Fatalf("expected parse error exit code 2, got %d", code)
	}
	if !strings.Contains(errOut.String(), "unknown command") {
		t.Fatalf("expected parse error details on stderr, got %q", errOut.String())
	}
	if out.Len() != 0 {
		t.Fatalf("expected no stdout output for parse error, got %q", out.String())
	}
}

func TestRunStripEndToEnd(t *testing.T) {
	root := t.TempDir()
	source := "import { debug } from './devOnly' with { only: 'dev' };\nconsole.log('ready');\n"
	if err := os.WriteFile(filepath.Join(root, "index.js"), []byte(source), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".stripgate.yml"), []byte("rules:\n  - attributes: {only: dev}\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	var errOut bytes.Buffer
	code := run(context.Background(), []string{"strip", "index.js", "--root", root}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr %q)", code, errOut.String())
	}
	if out.String() != "console.log('ready');\n" {
		t.Fatalf("unexpected stripped output %q", out.String())
	}
}

func TestRunBuildVerificationFailure(t *testing.T) {
	root := t.TempDir()
	source := "import { debug } from './devOnly' with { only: 'dev' };\ndebug('always');\n"
	if err := os.WriteFile(filepath.Join(root, "index.ts"), []byte(source), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".stripgate.yml"), []byte("rules:\n  - attributes: {only: dev}\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	var errOut bytes.Buffer
	code := run(context.Background(), []string{"build", "index.ts", "--root", root}, &out, &errOut)
	if code != 3 {
		t.Fatalf("expected verification exit code 3, got %d (stderr %q)", code, errOut.String())
	}
	if !strings.Contains(errOut.String(), "Stripped conditional import binding 'debug' still in output (index.ts)") {
		t.Fatalf("expected verification message on stderr, got %q", errOut.String())
	}
}
