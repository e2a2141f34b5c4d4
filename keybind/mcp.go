package keybind

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers keybind tools on an MCP server.
func (k *Keeper) RegisterMCP(srv *mcp.Server) {
	k.registerListBindingsTool(srv)
	k.registerRemoveBindingTool(srv)
	k.registerChangeKeyTool(srv)
	k.registerMoveBindingsTool(srv)
	k.registerTogglePathTool(srv)
	k.registerExportTool(srv)
	k.registerImportTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// addTool decodes the call arguments into a fresh *T, runs fn and returns
// its JSON-encoded result. Failures are reported as tool errors, not
// protocol errors.
func addTool[T any](srv *mcp.Server, tool *mcp.Tool, fn func(context.Context, *T) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in T
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &in); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		out, err := fn(ctx, &in)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(out)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- list_bindings ---

type listBindingsRequest struct {
	Domain string `json:"domain,omitempty"`
	Site   string `json:"site,omitempty"`
}

func (k *Keeper) registerListBindingsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vind_list_bindings",
		Description: "List key bindings. With a domain, only that domain; with a domain and a site path, only the bindings active on that page.",
		InputSchema: inputSchema(map[string]any{
			"domain": map[string]any{"type": "string", "description": "Domain (e.g. example.com)"},
			"site":   map[string]any{"type": "string", "description": "Page path within the domain (e.g. docs/intro)"},
		}, nil),
	}
	addTool(srv, tool, func(ctx context.Context, r *listBindingsRequest) (any, error) {
		switch {
		case r.Domain != "" && r.Site != "":
			return k.ActiveBindings(ctx, r.Domain, r.Site)
		case r.Domain != "":
			return k.BindingsForDomain(ctx, r.Domain)
		case r.Site != "":
			return nil, errors.New("site requires a domain")
		}
		return k.ListBindings(ctx)
	})
}

// --- remove_binding ---

type removeBindingRequest struct {
	ID string `json:"id"`
}

func (k *Keeper) registerRemoveBindingTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vind_remove_binding",
		Description: "Remove a key binding by ID.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Binding ID"},
		}, []string{"id"}),
	}
	addTool(srv, tool, func(ctx context.Context, r *removeBindingRequest) (any, error) {
		ok, err := k.RemoveBinding(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("binding %s not found", r.ID)
		}
		return map[string]string{"status": "removed", "id": r.ID}, nil
	})
}

// --- change_key ---

type changeKeyRequest struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

func (k *Keeper) registerChangeKeyTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vind_change_key",
		Description: "Bind an existing binding to another key.",
		InputSchema: inputSchema(map[string]any{
			"id":  map[string]any{"type": "string", "description": "Binding ID"},
			"key": map[string]any{"type": "string", "description": "New key (e.g. k, F2)"},
		}, []string{"id", "key"}),
	}
	addTool(srv, tool, func(ctx context.Context, r *changeKeyRequest) (any, error) {
		ok, err := k.ChangeKey(ctx, r.ID, r.Key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("binding %s not found", r.ID)
		}
		return k.GetBinding(ctx, r.ID)
	})
}

// --- move_bindings ---

type moveBindingsRequest struct {
	Domain string `json:"domain"`
	From   string `json:"from"`
	To     string `json:"to"`
}

func (k *Keeper) registerMoveBindingsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vind_move_bindings",
		Description: "Move every binding of a domain from one page path to another.",
		InputSchema: inputSchema(map[string]any{
			"domain": map[string]any{"type": "string", "description": "Domain"},
			"from":   map[string]any{"type": "string", "description": "Current path"},
			"to":     map[string]any{"type": "string", "description": "New path"},
		}, []string{"domain", "from", "to"}),
	}
	addTool(srv, tool, func(ctx context.Context, r *moveBindingsRequest) (any, error) {
		n, err := k.MoveBindings(ctx, r.Domain, r.From, r.To)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"moved": n}, nil
	})
}

// --- toggle_path ---

type togglePathRequest struct {
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

func (k *Keeper) registerTogglePathTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vind_toggle_path",
		Description: "Disable or re-enable the bindings of a page path. Returns the new state.",
		InputSchema: inputSchema(map[string]any{
			"domain": map[string]any{"type": "string", "description": "Domain"},
			"path":   map[string]any{"type": "string", "description": "Page path, empty for the whole domain"},
		}, []string{"domain"}),
	}
	addTool(srv, tool, func(ctx context.Context, r *togglePathRequest) (any, error) {
		disabled, err := k.TogglePath(ctx, r.Domain, r.Path)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"disabled": disabled}, nil
	})
}

// --- export ---

type exportRequest struct{}

func (k *Keeper) registerExportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vind_export",
		Description: "Export every binding and disabled path as a versioned payload.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	addTool(srv, tool, func(ctx context.Context, _ *exportRequest) (any, error) {
		data, err := k.Export(ctx)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(data), nil
	})
}

// --- import ---

type importRequest struct {
	Payload json.RawMessage `json:"payload"`
}

func (k *Keeper) registerImportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vind_import",
		Description: "Import a payload produced by vind_export. Nothing is applied unless the whole payload is valid.",
		InputSchema: inputSchema(map[string]any{
			"payload": map[string]any{"description": "Exported payload, as an object or a JSON string"},
		}, []string{"payload"}),
	}
	addTool(srv, tool, func(ctx context.Context, r *importRequest) (any, error) {
		data := []byte(r.Payload)
		var s string
		if json.Unmarshal(data, &s) == nil {
			data = []byte(s)
		}
		return k.Import(ctx, data)
	})
}
