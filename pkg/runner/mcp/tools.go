package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultWarmTimeout = 30 * time.Second

func registerTools(srv *mcp.Server, svc *Service) {
	registerLayoutTool(srv, svc)
	registerWarmTool(srv, svc)
	registerCacheStatsTool(srv, svc)
	registerListTilesTool(srv, svc)
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func viewProperties() map[string]any {
	return map[string]any{
		"width":  map[string]any{"type": "number", "description": "Viewport width in layout units."},
		"height": map[string]any{"type": "number", "description": "Viewport height in layout units."},
		"scroll": map[string]any{"type": "number", "description": "Scroll offset from the top of the content."},
		"mode":   map[string]any{"type": "string", "enum": []string{"grid", "list", "text"}},
	}
}

// handle decodes arguments into a fresh T, runs fn and wraps its result as
// JSON text. Failures become tool errors rather than protocol errors.
func handle[T any](fn func(context.Context, *T) (any, error)) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := new(T)
		if raw := req.Params.Arguments; len(raw) > 0 {
			if err := json.Unmarshal(raw, args); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}
		out, err := fn(ctx, args)
		if err != nil {
			return toolError(err), nil
		}
		data, err := json.Marshal(out)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	}
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}

func registerLayoutTool(srv *mcp.Server, svc *Service) {
	props := viewProperties()
	props["commands"] = map[string]any{"type": "boolean", "description": "Include every draw command."}
	srv.AddTool(&mcp.Tool{
		Name:        "tilegrid_layout",
		Description: "Compute the layout of the tile grid for a viewport: columns, tile size, content height and the visible range.",
		InputSchema: objectSchema(props, "width", "height"),
	}, handle(func(_ context.Context, args *ViewArgs) (any, error) {
		return svc.Layout(*args)
	}))
}

type warmArgs struct {
	ViewArgs
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

func registerWarmTool(srv *mcp.Server, svc *Service) {
	props := viewProperties()
	props["timeout_seconds"] = map[string]any{"type": "number", "description": "How long to wait for images."}
	srv.AddTool(&mcp.Tool{
		Name:        "tilegrid_warm",
		Description: "Load every image visible in a viewport into the cache and wait until they are ready.",
		InputSchema: objectSchema(props, "width", "height"),
	}, handle(func(ctx context.Context, args *warmArgs) (any, error) {
		timeout := defaultWarmTimeout
		if args.TimeoutSeconds > 0 {
			timeout = time.Duration(args.TimeoutSeconds * float64(time.Second))
		}
		return svc.Warm(ctx, args.ViewArgs, timeout)
	}))
}

func registerCacheStatsTool(srv *mcp.Server, svc *Service) {
	srv.AddTool(&mcp.Tool{
		Name:        "tilegrid_cache_stats",
		Description: "Report entries, bytes and hit counters for the memory and disk image caches.",
		InputSchema: objectSchema(map[string]any{}),
	}, handle(func(context.Context, *struct{}) (any, error) {
		return svc.CacheStats(), nil
	}))
}

type listArgs struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func registerListTilesTool(srv *mcp.Server, svc *Service) {
	srv.AddTool(&mcp.Tool{
		Name:        "tilegrid_list_tiles",
		Description: "List tiles in display order.",
		InputSchema: objectSchema(map[string]any{
			"offset": map[string]any{"type": "integer", "minimum": 0},
			"limit":  map[string]any{"type": "integer", "minimum": 1, "maximum": 500},
		}),
	}, handle(func(_ context.Context, args *listArgs) (any, error) {
		t, total := svc.Tiles(args.Offset, args.Limit)
		return map[string]any{"tiles": t, "total": total}, nil
	}))
}
