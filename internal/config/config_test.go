package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ben-ranford/stripgate/internal/testutil"
)

const (
	loadConfigErrFmt = "load config: %v"
	stripgateYMLName = ".stripgate.yml"
	stripgateJSON    = "stripgate.json"
	stripgateTOML    = "stripgate.toml"
)

func TestLoadNoConfigFile(t *testing.T) {
	repo := t.TempDir()
	result, err := Load(repo, "")
	if err != nil {
		t.Fatalf(loadConfigErrFmt, err)
	}
	if result.ConfigPath != "" {
		t.Fatalf("expected no config path, got %q", result.ConfigPath)
	}
	if diff := cmp.Diff(Defaults(), result.Resolved); diff != "" {
		t.Fatalf("expected defaults (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"defaults"}, result.Sources); diff != "" {
		t.Fatalf("unexpected sources (-want +got):\n%s", diff)
	}
}

func TestLoadYAMLConfig(t *testing.T) {
	repo := t.TempDir()
	cfg := strings.Join([]string{
		"entry_points: [src/index.ts]",
		"outdir: build",
		"sourcemap: true",
		"define:",
		"  process.env.NODE_ENV: '\"production\"'",
		"rules:",
		"  - attributes:",
		"      only: dev",
		"      enabled: true",
		"      level: 2",
		"",
	}, "\n")
	testutil.MustWriteFile(t, filepath.Join(repo, stripgateYMLName), cfg)

	result, err := Load(repo, "")
	if err != nil {
		t.Fatalf(loadConfigErrFmt, err)
	}
	if !strings.HasSuffix(result.ConfigPath, stripgateYMLName) {
		t.Fatalf("expected %s path, got %q", stripgateYMLName, result.ConfigPath)
	}
	resolved := result.Resolved
	if resolved.OutDir != "build" || !resolved.Sourcemap || resolved.Mode != ModeProduction {
		t.Fatalf("unexpected resolved values: %+v", resolved)
	}
	if diff := cmp.Diff([]string{"src/index.ts"}, resolved.EntryPoints); diff != "" {
		t.Fatalf("unexpected entry points (-want +got):\n%s", diff)
	}
	if got := resolved.Define["process.env.NODE_ENV"]; got != `"production"` {
		t.Fatalf("unexpected define value %q", got)
	}
	if len(resolved.Rules) != 1 {
		t.Fatalf("expected one rule, got %d", len(resolved.Rules))
	}
	want := map[string]any{"only": "dev", "enabled": true, "level": 2}
	if diff := cmp.Diff(want, resolved.Rules[0].Attributes); diff != "" {
		t.Fatalf("unexpected rule attributes (-want +got):\n%s", diff)
	}
}

func TestLoadJSONConfig(t *testing.T) {
	repo := t.TempDir()
	cfg := `{
  "entry_points": ["src/main.js"],
  "mode": "development",
  "apply_in_dev": true,
  "rules": [{"specifier": "./debug/*", "modes": ["development"]}]
}`
	testutil.MustWriteFile(t, filepath.Join(repo, stripgateJSON), cfg)

	result, err := Load(repo, "")
	if err != nil {
		t.Fatalf(loadConfigErrFmt, err)
	}
	resolved := result.Resolved
	if resolved.Mode != ModeDevelopment || !resolved.ApplyInDev || !resolved.StripActive() {
		t.Fatalf("unexpected resolved values: %+v", resolved)
	}
	if resolved.Rules[0].Specifier != "./debug/*" {
		t.Fatalf("unexpected rule %+v", resolved.Rules[0])
	}
}

func TestLoadTOMLConfig(t *testing.T) {
	repo := t.TempDir()
	cfg := strings.Join([]string{
		`entry_points = ["index.ts"]`,
		`format = "cjs"`,
		`platform = "node"`,
		`force_sourcemap = false`,
		``,
		`[[rules]]`,
		`resolved = "src/dev/**"`,
		`[rules.attributes]`,
		`only = "dev"`,
		``,
	}, "\n")
	testutil.MustWriteFile(t, filepath.Join(repo, stripgateTOML), cfg)

	result, err := Load(repo, "")
	if err != nil {
		t.Fatalf(loadConfigErrFmt, err)
	}
	resolved := result.Resolved
	if resolved.Format != "cjs" || resolved.Platform != "node" || resolved.ForceSourcemap {
		t.Fatalf("unexpected resolved values: %+v", resolved)
	}
	if resolved.MapsForVerifier() {
		t.Fatalf("expected maps off without sourcemap or force_sourcemap")
	}
	if resolved.Rules[0].Resolved != "src/dev/**" || resolved.Rules[0].Attributes["only"] != "dev" {
		t.Fatalf("unexpected rule %+v", resolved.Rules[0])
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	for name, content := range map[string]string{
		stripgateYMLName: "unknown: 1\n",
		stripgateJSON:    `{"unknown": 1}`,
		stripgateTOML:    "unknown = 1\n",
	} {
		t.Run(name, func(t *testing.T) {
			repo := t.TempDir()
			testutil.MustWriteFile(t, filepath.Join(repo, name), content)
			_, err := Load(repo, "")
			if err == nil || !strings.Contains(err.Error(), "unknown") {
				t.Fatalf("expected unknown-field error, got %v", err)
			}
		})
	}
}

func TestLoadConfigTOMLUnknownFieldNamesKey(t *testing.T) {
	repo := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(repo, stripgateTOML), "mode = \"production\"\nbogus_key = 1\n\n[define]\nA = \"1\"\n")
	_, err := Load(repo, "")
	if err == nil {
		t.Fatalf("expected unknown-field error")
	}
	if !strings.Contains(err.Error(), "unknown field(s): bogus_key") {
		t.Fatalf("expected offending key in error, got %v", err)
	}
}

func TestLoadConfigInvalidJSONMultipleValues(t *testing.T) {
	repo := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(repo, stripgateJSON), `{"mode":"production"}{"mode":"development"}`)
	_, err := Load(repo, "")
	if err == nil || !strings.Contains(err.Error(), "multiple JSON values") {
		t.Fatalf("expected multiple values error, got %v", err)
	}
}

func TestLoadConfigEmptyYAMLUsesDefaults(t *testing.T) {
	repo := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(repo, stripgateYMLName), "")
	result, err := Load(repo, "")
	if err != nil {
		t.Fatalf(loadConfigErrFmt, err)
	}
	if diff := cmp.Diff(Defaults(), result.Resolved); diff != "" {
		t.Fatalf("expected defaults (-want +got):\n%s", diff)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"format":   "format: amd\n",
		"platform": "platform: deno\n",
		"mode":     "mode: ''\n",
		"entry":    "entry_points: ['']\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			repo := t.TempDir()
			testutil.MustWriteFile(t, filepath.Join(repo, stripgateYMLName), content)
			if _, err := Load(repo, ""); err == nil {
				t.Fatalf("expected validation error for %s", name)
			}
		})
	}
}

func TestLoadConfigDiscoveryPriority(t *testing.T) {
	repo := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(repo, stripgateJSON), `{"outdir":"json"}`)
	testutil.MustWriteFile(t, filepath.Join(repo, stripgateYMLName), "outdir: yml\n")

	result, err := Load(repo, "")
	if err != nil {
		t.Fatalf(loadConfigErrFmt, err)
	}
	if result.Resolved.OutDir != "yml" {
		t.Fatalf("expected yml config to win, got %q", result.Resolved.OutDir)
	}
}

func TestLoadConfigFromExplicitPathOutsideRepo(t *testing.T) {
	repo := t.TempDir()
	outside := filepath.Join(t.TempDir(), "custom.yml")
	testutil.MustWriteFile(t, outside, "outdir: out\n")

	result, err := Load(repo, outside)
	if err != nil {
		t.Fatalf(loadConfigErrFmt, err)
	}
	if result.Resolved.OutDir != "out" || result.ConfigPath != outside {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestLoadConfigExplicitPathMissing(t *testing.T) {
	repo := t.TempDir()
	_, err := Load(repo, "missing.yml")
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestLoadExtendsPrecedenceAndSources(t *testing.T) {
	repo := t.TempDir()
	basePath := filepath.Join(repo, "configs", "base.yml")
	testutil.MustWriteFile(t, basePath, strings.Join([]string{
		"outdir: base-out",
		"format: cjs",
		"env:",
		"  TARGET: web",
		"  REGION: eu",
		"rules:",
		"  - specifier: ./base-only",
		"",
	}, "\n"))
	rootPath := filepath.Join(repo, stripgateYMLName)
	testutil.MustWriteFile(t, rootPath, strings.Join([]string{
		"extends: [configs/base.yml]",
		"outdir: root-out",
		"env:",
		"  REGION: us",
		"rules:",
		"  - specifier: ./root-only",
		"",
	}, "\n"))

	result, err := Load(repo, "")
	if err != nil {
		t.Fatalf(loadConfigErrFmt, err)
	}
	resolved := result.Resolved
	if resolved.OutDir != "root-out" || resolved.Format != "cjs" {
		t.Fatalf("unexpected precedence: %+v", resolved)
	}
	if diff := cmp.Diff(map[string]string{"TARGET": "web", "REGION": "us"}, resolved.Env); diff != "" {
		t.Fatalf("unexpected env (-want +got):\n%s", diff)
	}
	specifiers := []string{resolved.Rules[0].Specifier, resolved.Rules[1].Specifier}
	if diff := cmp.Diff([]string{"./base-only", "./root-only"}, specifiers); diff != "" {
		t.Fatalf("unexpected rule order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{rootPath, basePath, "defaults"}, result.Sources); diff != "" {
		t.Fatalf("unexpected sources (-want +got):\n%s", diff)
	}
}

func TestLoadExtendsCycle(t *testing.T) {
	repo := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(repo, stripgateYMLName), "extends: [a.yml]\n")
	testutil.MustWriteFile(t, filepath.Join(repo, "a.yml"), "extends: [.stripgate.yml]\n")

	_, err := Load(repo, "")
	if err == nil || !strings.Contains(err.Error(), "config extends cycle detected") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestLoadExtendsRejectsEmptyReference(t *testing.T) {
	repo := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(repo, stripgateYMLName), "extends: ['  ']\n")
	_, err := Load(repo, "")
	if err == nil || !strings.Contains(err.Error(), "extends[0] must not be empty") {
		t.Fatalf("expected empty extends error, got %v", err)
	}
}

func TestStripActiveAndMapsForVerifier(t *testing.T) {
	values := Defaults()
	if !values.StripActive() || !values.MapsForVerifier() {
		t.Fatalf("expected production defaults to strip with forced maps")
	}
	values.Mode = ModeDevelopment
	if values.StripActive() || values.MapsForVerifier() {
		t.Fatalf("expected development build to skip stripping")
	}
	values.Sourcemap = true
	if !values.MapsForVerifier() {
		t.Fatalf("expected explicit sourcemap to produce maps")
	}
}
