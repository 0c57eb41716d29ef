package bundle

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/ben-ranford/stripgate/internal/safeio"
	"github.com/ben-ranford/stripgate/internal/verify"
)

// metafile is the subset of esbuild's metafile JSON the build reads.
type metafile struct {
	Inputs  map[string]metafileInput  `json:"inputs"`
	Outputs map[string]metafileOutput `json:"outputs"`
}

type metafileInput struct {
	Bytes  int    `json:"bytes"`
	Format string `json:"format,omitempty"`
}

type metafileOutput struct {
	Bytes      int                     `json:"bytes"`
	Inputs     map[string]inputContrib `json:"inputs"`
	EntryPoint string                  `json:"entryPoint,omitempty"`
}

type inputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

func parseMetafile(raw string) (metafile, error) {
	var meta metafile
	if strings.TrimSpace(raw) == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return metafile{}, fmt.Errorf("parse esbuild metafile: %w", err)
	}
	return meta, nil
}

var codeExtensions = map[string]struct{}{".js": {}, ".mjs": {}, ".cjs": {}}

func chunkKind(fileName string) verify.ChunkKind {
	if _, ok := codeExtensions[path.Ext(fileName)]; ok {
		return verify.ChunkCode
	}
	return verify.ChunkAsset
}

// collectChunks pairs esbuild's in-memory outputs with the metafile. Each
// code chunk gets its contributing modules and its sibling .map payload.
func collectChunks(root string, outputs []api.OutputFile, meta metafile) ([]verify.Chunk, error) {
	byID := make(map[string]api.OutputFile, len(outputs))
	ids := make([]string, 0, len(outputs))
	for _, output := range outputs {
		id, err := safeio.RelID(root, output.Path)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", output.Path, err)
		}
		byID[id] = output
		ids = append(ids, id)
	}
	sort.Strings(ids)

	chunks := make([]verify.Chunk, 0, len(ids))
	for _, id := range ids {
		if strings.HasSuffix(id, ".map") {
			if _, ok := byID[strings.TrimSuffix(id, ".map")]; ok {
				continue
			}
		}
		chunk := verify.Chunk{
			FileName: id,
			Kind:     chunkKind(id),
			Code:     string(byID[id].Contents),
			Modules:  make(map[string]struct{}),
		}
		for input := range meta.Outputs[id].Inputs {
			chunk.Modules[input] = struct{}{}
		}
		if mapOutput, ok := byID[id+".map"]; ok && chunk.Kind == verify.ChunkCode {
			chunk.Map = mapOutput.Contents
			chunk.MapFileName = id + ".map"
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
