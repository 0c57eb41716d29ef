package verify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ben-ranford/stripgate/internal/registry"
	"github.com/ben-ranford/stripgate/internal/sourcemap"
)

func modules(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func registryWith(t *testing.T, entries ...[2]string) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, entry := range entries {
		if err := reg.Add(entry[0], entry[1]); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	return reg
}

func TestVerifyEmptyRegistryDoesNothing(t *testing.T) {
	chunks := []Chunk{{FileName: "dist/index.js", Kind: ChunkCode, Code: "this is not javascript (", Modules: modules("index.ts")}}
	messages, err := New(Options{}).Verify(context.Background(), chunks, registry.New())
	if err != nil || len(messages) != 0 {
		t.Fatalf("expected no work for empty registry, got %v, %v", messages, err)
	}
}

func TestVerifyReportsSingleOrigin(t *testing.T) {
	reg := registryWith(t, [2]string{"debug", "index.ts"})
	chunks := []Chunk{{FileName: "dist/index.js", Kind: ChunkCode, Code: "debug();\n", Modules: modules("index.ts")}}

	err := New(Options{}).Check(context.Background(), chunks, reg)
	var verifyErr *Error
	if !errors.As(err, &verifyErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if err.Error() != "Stripped conditional import binding 'debug' still in output (index.ts)" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestVerifyMultipleOriginsWithoutMap(t *testing.T) {
	reg := registryWith(t,
		[2]string{"devOnly", "b.ts"},
		[2]string{"devOnly", "a.ts"},
		[2]string{"devOnly", "a.ts"},
		[2]string{"devOnly", "unrelated.ts"},
	)
	chunks := []Chunk{{
		FileName: "dist/index.js",
		Kind:     ChunkCode,
		Code:     "devOnly(1);\ndevOnly(2);\n",
		Modules:  modules("a.ts", "b.ts", "index.ts"),
	}}
	messages, err := New(Options{}).Verify(context.Background(), chunks, reg)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	want := []string{"Stripped conditional import binding 'devOnly' still in output (a.ts, b.ts)"}
	if diff := cmp.Diff(want, messages); diff != "" {
		t.Fatalf("unexpected messages (-want +got):\n%s", diff)
	}
}

func TestVerifyLocalizesThroughSourceMap(t *testing.T) {
	reg := registryWith(t, [2]string{"devOnly", "a.ts"}, [2]string{"devOnly", "b.ts"})

	builder := sourcemap.NewBuilder("index.js")
	a := builder.AddSource("../a.ts", "devOnly();\n")
	builder.AddSource("../b.ts", "")
	builder.Add(sourcemap.Mapping{GenLine: 0, GenColumn: 0, SourceIndex: a, OrigLine: 0, OrigColumn: 0})
	payload, err := builder.Build().JSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	chunks := []Chunk{{
		FileName:    "dist/index.js",
		Kind:        ChunkCode,
		Code:        "devOnly();\n",
		Modules:     modules("a.ts", "b.ts"),
		Map:         payload,
		MapFileName: "dist/index.js.map",
	}}
	messages, err := New(Options{}).Verify(context.Background(), chunks, reg)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	want := []string{"Stripped conditional import binding 'devOnly' still in output (a.ts)"}
	if diff := cmp.Diff(want, messages); diff != "" {
		t.Fatalf("unexpected messages (-want +got):\n%s", diff)
	}
}

func TestVerifyFallsBackWhenMapIsUnusable(t *testing.T) {
	reg := registryWith(t, [2]string{"debug", "/repo/src/a.ts"}, [2]string{"debug", "/repo/src/b.ts"})
	chunks := []Chunk{{
		FileName: "dist/index.js",
		Kind:     ChunkCode,
		Code:     "debug();\n",
		Modules:  modules("/repo/src/a.ts", "/repo/src/b.ts"),
		Map:      []byte("{not json"),
	}}
	messages, err := New(Options{Root: "/repo"}).Verify(context.Background(), chunks, reg)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	want := []string{"Stripped conditional import binding 'debug' still in output (src/a.ts, src/b.ts)"}
	if diff := cmp.Diff(want, messages); diff != "" {
		t.Fatalf("unexpected messages (-want +got):\n%s", diff)
	}
}

func TestVerifyIgnoresUnrelatedReferencesAndAssets(t *testing.T) {
	reg := registryWith(t, [2]string{"debug", "other.ts"}, [2]string{"trace", "index.ts"})
	chunks := []Chunk{
		{FileName: "dist/style.css", Kind: ChunkAsset, Code: "trace();", Modules: modules("index.ts")},
		{FileName: "dist/index.js", Kind: ChunkCode, Code: "debug();\nunknownGlobal();\nfunction trace() {}\ntrace();\n", Modules: modules("index.ts")},
	}
	messages, err := New(Options{}).Verify(context.Background(), chunks, reg)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %v", messages)
	}
}

func TestVerifyAggregatesAcrossChunksInOrder(t *testing.T) {
	reg := registryWith(t, [2]string{"debug", "a.ts"}, [2]string{"trace", "b.ts"})
	chunks := []Chunk{
		{FileName: "dist/a.js", Kind: ChunkCode, Code: "trace(); debug();\n", Modules: modules("a.ts", "b.ts")},
		{FileName: "dist/b.js", Kind: ChunkCode, Code: "debug();\n", Modules: modules("a.ts")},
	}
	err := New(Options{}).Check(context.Background(), chunks, reg)
	if err == nil {
		t.Fatalf("expected verification failure")
	}
	lines := strings.Split(err.Error(), "\n")
	want := []string{
		"Stripped conditional import binding 'trace' still in output (b.ts)",
		"Stripped conditional import binding 'debug' still in output (a.ts)",
		"Stripped conditional import binding 'debug' still in output (a.ts)",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatalf("unexpected aggregated error (-want +got):\n%s", diff)
	}
}
