package bundle

import (
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/go-cmp/cmp"

	"github.com/ben-ranford/stripgate/internal/config"
	"github.com/ben-ranford/stripgate/internal/verify"
)

func TestCollectChunksPairsMapsAndModules(t *testing.T) {
	root := t.TempDir()
	outputs := []api.OutputFile{
		{Path: filepath.Join(root, "dist", "index.js"), Contents: []byte("run();")},
		{Path: filepath.Join(root, "dist", "index.js.map"), Contents: []byte(`{"version":3}`)},
		{Path: filepath.Join(root, "dist", "index.css"), Contents: []byte("body{}")},
	}
	meta, err := parseMetafile(`{"inputs":{"index.ts":{"bytes":6}},"outputs":{"dist/index.js":{"bytes":6,"inputs":{"index.ts":{"bytesInOutput":6}},"entryPoint":"index.ts"}}}`)
	if err != nil {
		t.Fatalf("parse metafile: %v", err)
	}

	chunks, err := collectChunks(root, outputs, meta)
	if err != nil {
		t.Fatalf("collect chunks: %v", err)
	}
	want := []verify.Chunk{
		{FileName: "dist/index.css", Kind: verify.ChunkAsset, Code: "body{}", Modules: map[string]struct{}{}},
		{
			FileName:    "dist/index.js",
			Kind:        verify.ChunkCode,
			Code:        "run();",
			Modules:     map[string]struct{}{"index.ts": {}},
			Map:         []byte(`{"version":3}`),
			MapFileName: "dist/index.js.map",
		},
	}
	if diff := cmp.Diff(want, chunks); diff != "" {
		t.Fatalf("unexpected chunks (-want +got):\n%s", diff)
	}
}

func TestParseMetafileRejectsGarbage(t *testing.T) {
	if _, err := parseMetafile("{"); err == nil {
		t.Fatalf("expected parse error")
	}
	meta, err := parseMetafile("")
	if err != nil || len(meta.Outputs) != 0 {
		t.Fatalf("expected empty metafile, got %+v (%v)", meta, err)
	}
}

func TestEsbuildOptionsFollowValues(t *testing.T) {
	values := config.Defaults()
	values.EntryPoints = []string{"a.ts", "b.ts"}
	values.Define = map[string]string{"__DEV__": "false"}

	options := esbuildOptions("/repo", values)
	if options.Sourcemap != api.SourceMapExternal {
		t.Fatalf("expected forced external maps, got %v", options.Sourcemap)
	}
	if !options.Splitting || !options.MinifySyntax || options.Write {
		t.Fatalf("unexpected options %+v", options)
	}
	want := map[string]string{"__DEV__": "false", nodeEnvDefine: `"production"`}
	if diff := cmp.Diff(want, options.Define); diff != "" {
		t.Fatalf("unexpected define (-want +got):\n%s", diff)
	}

	values.Sourcemap = true
	values.Format = "cjs"
	options = esbuildOptions("/repo", values)
	if options.Sourcemap != api.SourceMapLinked || options.Splitting || options.Format != api.FormatCommonJS {
		t.Fatalf("unexpected options %+v", options)
	}
}

func TestLoaderFor(t *testing.T) {
	cases := map[string]api.Loader{
		"a.ts": api.LoaderTS, "a.mts": api.LoaderTS, "a.tsx": api.LoaderTSX,
		"a.jsx": api.LoaderJSX, "a.js": api.LoaderJS, "a.cjs": api.LoaderJS,
	}
	for path, want := range cases {
		if got := loaderFor(path); got != want {
			t.Fatalf("loaderFor(%s) = %v, want %v", path, got, want)
		}
	}
}
