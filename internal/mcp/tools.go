package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/catalog"
)

// maxFileBytes caps the size of a file returned inline.
const maxFileBytes = 256 << 10

// ResolveParams are the arguments of resolve_template.
type ResolveParams struct {
	Prompt string `json:"prompt"`
}

// ListParams are the arguments of list_templates.
type ListParams struct {
	Tags []string `json:"tags,omitempty"`
}

// ReadFileParams are the arguments of read_template_file.
type ReadFileParams struct {
	Key string `json:"key"`
}

func (s *Server) handleResolve(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[ResolveParams]) (*mcp.CallToolResultFor[struct{}], error) {
	res, err := s.cat.Resolve(ctx, params.Arguments.Prompt)
	if err != nil {
		return s.toolError(ToolResolve, err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleList(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[ListParams]) (*mcp.CallToolResultFor[struct{}], error) {
	idx, err := s.cat.Catalog(ctx)
	if err != nil {
		return s.toolError(ToolList, err), nil
	}

	want := catalog.NewTagSet(params.Arguments.Tags...)
	out := make(catalog.Index, 0, len(idx))
	for _, e := range idx {
		if hasAll(e.Tags, want) {
			out = append(out, e)
		}
	}
	return jsonResult(out)
}

func (s *Server) handleReadFile(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[ReadFileParams]) (*mcp.CallToolResultFor[struct{}], error) {
	data, err := s.cat.Get(ctx, params.Arguments.Key)
	if err != nil {
		return s.toolError(ToolReadFile, err), nil
	}
	if len(data) > maxFileBytes || !utf8.Valid(data) {
		return s.toolError(ToolReadFile, apperr.Input("read", "%s is binary or larger than %d bytes", params.Arguments.Key, maxFileBytes)), nil
	}
	return textResult(string(data)), nil
}

func hasAll(tags, want catalog.TagSet) bool {
	for t := range want {
		if !tags.Has(t) {
			return false
		}
	}
	return true
}

// toolError reports err to the client as a failed tool call. Protocol-level
// errors are reserved for transport failures.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResultFor[struct{}] {
	msg := err.Error()
	if fix := apperr.FixOf(err); fix != "" {
		msg += "\nFix: " + fix
	}
	if apperr.HTTPStatus(err) >= 500 {
		s.logger.Error("tool failed", "tool", tool, "error", err)
	}
	res := textResult(msg)
	res.IsError = true
	return res
}

func textResult(text string) *mcp.CallToolResultFor[struct{}] {
	return &mcp.CallToolResultFor[struct{}]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) (*mcp.CallToolResultFor[struct{}], error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return textResult(strings.TrimSpace(string(data))), nil
}
