// Package mcp provides a Model Context Protocol server over the latest
// holdings build.
//
// Tools list the ordered entries, look up titles and their clusters and
// manage the reader's selection; the build statistics and the selection are
// exposed as resources. Serves over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/holdings/internal/assemble"
	"github.com/hurttlocker/holdings/internal/pipeline"
	"github.com/hurttlocker/holdings/internal/timeseries"
)

const defaultEntryLimit = 50

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Holder  *pipeline.Holder
	Version string // version string for MCP server info
}

// NewServer creates a configured MCP server with all holdings tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Holdings",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerEntriesTool(s, cfg.Holder)
	registerTitleTool(s, cfg.Holder)
	registerClusterOfTool(s, cfg.Holder)
	registerSelectTool(s, cfg.Holder)
	registerRebuildTool(s, cfg.Holder)

	registerStatsResource(s, cfg.Holder)
	registerSelectionResource(s, cfg.Holder)

	return s
}

// ServeStdio runs the server on the given streams until ctx is canceled.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

// --- Tools ---

type entrySummary struct {
	Kind    assemble.Kind `json:"kind"`
	IDs     []string      `json:"ids"`
	Names   []string      `json:"names"`
	SumMF   int           `json:"mf_sum"`
	Members int           `json:"members"`
}

func summarize(e assemble.Entry) entrySummary {
	members := e.Members()
	out := entrySummary{Kind: e.Kind(), SumMF: e.SumMF(), Members: len(members)}
	for _, t := range members {
		out.IDs = append(out.IDs, t.ID)
		out.Names = append(out.Names, t.Name)
	}
	return out
}

func registerEntriesTool(s *server.MCPServer, h *pipeline.Holder) {
	tool := mcp.NewTool("holdings_entries",
		mcp.WithDescription("List the ordered holdings entries (clusters of connected titles and standalone titles), sorted by descending microfilm total."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("kind",
			mcp.Description("Only return clusters or standalone titles (default: all)"),
			mcp.Enum("all", "cluster", "title"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of entries (default: 50)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := h.Current()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		kind := "all"
		if v, err := req.RequireString("kind"); err == nil && v != "" {
			kind = v
		}
		if kind != "all" && kind != string(assemble.KindCluster) && kind != string(assemble.KindTitle) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid kind %q", kind)), nil
		}
		limit := defaultEntryLimit
		if v, err := req.RequireFloat("limit"); err == nil && v > 0 {
			limit = int(v)
		}

		entries := make([]entrySummary, 0, min(limit, len(res.Output.Entries)))
		matched := 0
		for _, e := range res.Output.Entries {
			if kind != "all" && string(e.Kind()) != kind {
				continue
			}
			matched++
			if len(entries) < limit {
				entries = append(entries, summarize(e))
			}
		}

		payload := struct {
			Build   string           `json:"build"`
			Range   timeseries.Range `json:"range"`
			Total   int              `json:"total"`
			Entries []entrySummary   `json:"entries"`
		}{res.ID.String(), res.Range, matched, entries}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerTitleTool(s *server.MCPServer, h *pipeline.Holder) {
	tool := mcp.NewTool("holdings_title",
		mcp.WithDescription("Get one title with its restructured hard-copy and microfilm series, totals and microfilm ratio."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Title ID"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil || strings.TrimSpace(id) == "" {
			return mcp.NewToolResultError("id is required"), nil
		}
		res, err := h.Current()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		t, ok := res.Title(strings.TrimSpace(id))
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown title %q", id)), nil
		}
		data, _ := json.MarshalIndent(t, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerClusterOfTool(s *server.MCPServer, h *pipeline.Holder) {
	tool := mcp.NewTool("holdings_cluster_of",
		mcp.WithDescription("Find the cluster of titles connected to the given title, directly or through other titles."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Title ID"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil || strings.TrimSpace(id) == "" {
			return mcp.NewToolResultError("id is required"), nil
		}
		id = strings.TrimSpace(id)
		res, err := h.Current()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		g, ok := res.ClusterOf(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown title %q", id)), nil
		}

		payload := struct {
			ID         string   `json:"id"`
			Standalone bool     `json:"standalone"`
			Members    []string `json:"members"`
			SumMF      int      `json:"mf_sum"`
			Position   int      `json:"position"`
		}{ID: id, Standalone: g.Standalone(), Members: g.IDs(), SumMF: g.SumMF(), Position: -1}
		for i, e := range res.Output.Entries {
			for _, t := range e.Members() {
				if t.ID == id {
					payload.Position = i
				}
			}
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSelectTool(s *server.MCPServer, h *pipeline.Holder) {
	tool := mcp.NewTool("holdings_select",
		mcp.WithDescription("Change the selected titles. Returns the selection as sorted IDs and as the comma-joined list."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("ids",
			mcp.Required(),
			mcp.Description("Comma-separated title IDs"),
		),
		mcp.WithString("mode",
			mcp.Description("set replaces the selection, add/remove/toggle edit it (default: set)"),
			mcp.Enum("set", "add", "remove", "toggle"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := req.RequireString("ids")
		if err != nil {
			return mcp.NewToolResultError("ids is required"), nil
		}
		ids := assemble.ParseSelection(list).IDs()

		mode := "set"
		if v, err := req.RequireString("mode"); err == nil && v != "" {
			mode = v
		}

		var sel *assemble.Selection
		switch mode {
		case "set":
			sel = h.Select(ids)
		case "add", "remove":
			next := h.Selection()
			for _, id := range ids {
				if mode == "add" {
					next.Add(id)
				} else {
					next.Remove(id)
				}
			}
			sel = h.Select(next.IDs())
		case "toggle":
			for _, id := range ids {
				h.Toggle(id)
			}
			sel = h.Selection()
		default:
			return mcp.NewToolResultError(fmt.Sprintf("invalid mode %q", mode)), nil
		}

		data, _ := json.MarshalIndent(selectionPayload(h, sel), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRebuildTool(s *server.MCPServer, h *pipeline.Holder) {
	tool := mcp.NewTool("holdings_rebuild",
		mcp.WithDescription("Reload the datasets and rebuild the entries. The previous build stays in place if the rebuild fails."),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := h.Rebuild(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("rebuild failed: %v", err)), nil
		}
		data, _ := json.MarshalIndent(res, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

type selectionView struct {
	IDs     []string `json:"ids"`
	List    string   `json:"list"`
	Unknown []string `json:"unknown,omitempty"`
}

func selectionPayload(h *pipeline.Holder, sel *assemble.Selection) selectionView {
	v := selectionView{IDs: sel.IDs(), List: sel.String()}
	if res, err := h.Current(); err == nil {
		v.Unknown = sel.Unknown(res.Output)
	}
	return v
}

// --- Resources ---

func registerStatsResource(s *server.MCPServer, h *pipeline.Holder) {
	resource := mcp.NewResource(
		"holdings://stats",
		"Build Statistics",
		mcp.WithResourceDescription("Entry, cluster and title counts, holdings totals and the year range of the latest build."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		res, err := h.Current()
		if err != nil {
			return nil, fmt.Errorf("getting stats: %w", err)
		}
		data, _ := json.MarshalIndent(res, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func registerSelectionResource(s *server.MCPServer, h *pipeline.Holder) {
	resource := mcp.NewResource(
		"holdings://selection",
		"Selected Titles",
		mcp.WithResourceDescription("The currently selected title IDs."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, _ := json.MarshalIndent(selectionPayload(h, h.Selection()), "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
