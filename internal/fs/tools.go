package fs

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/samiralibabic/mcpterm/internal/tools"
)

type ReadParams struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset,omitempty"`
	Length int64  `json:"length,omitempty"`
}

type WriteParams struct {
	Path          string `json:"path"`
	Content       string `json:"content"`
	Mode          string `json:"mode,omitempty"`
	MkdirParents  bool   `json:"mkdir_parents,omitempty"`
	ExpectedMTime int64  `json:"expected_mtime,omitempty"`
}

type ListParams struct {
	Path       string `json:"path"`
	Recursive  bool   `json:"recursive,omitempty"`
	MaxEntries int    `json:"max_entries,omitempty"`
}

type FindParams struct {
	Pattern    string `json:"pattern"`
	MaxMatches int    `json:"max_matches,omitempty"`
}

type fileTool[P any] struct {
	meta tools.Metadata
	run  func(ctx context.Context, p P) (any, error)
}

func (t fileTool[P]) Metadata() tools.Metadata {
	return t.meta
}

func (t fileTool[P]) Execute(ctx context.Context, raw json.RawMessage) (tools.Result, error) {
	var p P
	if err := json.Unmarshal(raw, &p); err != nil {
		return tools.Result{}, errors.Wrapf(err, "decode %s params", t.meta.ID)
	}
	out, err := t.run(ctx, p)
	if err != nil {
		return tools.Result{}, err
	}
	return tools.Success(t.meta.ID, out)
}

// Tools returns the filesystem tools backed by s.
func (s *Service) Tools() []tools.Tool {
	return []tools.Tool{
		fileTool[ReadParams]{
			meta: tools.Metadata{
				ID:          "read_file",
				Name:        "Read file",
				Description: "Read a text file inside the allowed roots.",
				Category:    tools.CategoryFilesystem,
				InputSchema: json.RawMessage(`{"type":"object","required":["path"],"properties":{` +
					`"path":{"type":"string"},"offset":{"type":"integer"},"length":{"type":"integer"}}}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},` +
					`"content":{"type":"string"},"size":{"type":"integer"},"truncated":{"type":"boolean"}}}`),
			},
			run: func(ctx context.Context, p ReadParams) (any, error) {
				return s.Read(ctx, p.Path, p.Offset, p.Length)
			},
		},
		fileTool[WriteParams]{
			meta: tools.Metadata{
				ID:          "write_file",
				Name:        "Write file",
				Description: "Write, append to or create a text file inside the allowed roots.",
				Category:    tools.CategoryFilesystem,
				InputSchema: json.RawMessage(`{"type":"object","required":["path","content"],"properties":{` +
					`"path":{"type":"string"},"content":{"type":"string"},"mode":{"type":"string"},` +
					`"mkdir_parents":{"type":"boolean"},"expected_mtime":{"type":"integer"}}}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},` +
					`"bytes_written":{"type":"integer"},"created":{"type":"boolean"}}}`),
			},
			run: func(ctx context.Context, p WriteParams) (any, error) {
				return s.Write(ctx, p.Path, []byte(p.Content), p.Mode, p.MkdirParents, p.ExpectedMTime)
			},
		},
		fileTool[ListParams]{
			meta: tools.Metadata{
				ID:          "list_directory",
				Name:        "List directory",
				Description: "List the entries of a directory inside the allowed roots.",
				Category:    tools.CategoryFilesystem,
				InputSchema: json.RawMessage(`{"type":"object","required":["path"],"properties":{` +
					`"path":{"type":"string"},"recursive":{"type":"boolean"},"max_entries":{"type":"integer"}}}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"entries":{"type":"array"}}}`),
			},
			run: func(_ context.Context, p ListParams) (any, error) {
				return s.List(p.Path, p.Recursive, p.MaxEntries)
			},
		},
		fileTool[FindParams]{
			meta: tools.Metadata{
				ID:          "find_files",
				Name:        "Find files",
				Description: "Find files matching a glob pattern inside the allowed roots.",
				Category:    tools.CategorySearch,
				InputSchema: json.RawMessage(`{"type":"object","required":["pattern"],"properties":{` +
					`"pattern":{"type":"string"},"max_matches":{"type":"integer"}}}`),
				OutputSchema: json.RawMessage(`{"type":"object","properties":{"matches":{"type":"array"}}}`),
			},
			run: func(_ context.Context, p FindParams) (any, error) {
				matches, err := s.Glob(p.Pattern, p.MaxMatches)
				if err != nil {
					return nil, err
				}
				return map[string]any{"matches": matches}, nil
			},
		},
	}
}
