package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calendaragent/internal/llm"
)

// Tagged result statuses returned by operation handlers.
const (
	StatusSuccess  = "success"
	StatusConflict = "conflict"
	StatusNotFound = "not_found"
	StatusError    = "error"
	StatusWarning  = "warning"
)

// ToolAdder is implemented by *Registry and *mcpserver.MCPServer, so
// operation sets can be registered into either.
type ToolAdder interface {
	AddTool(tool mcp.Tool, handler mcpserver.ToolHandlerFunc)
}

var _ ToolAdder = (*Registry)(nil)
var _ ToolAdder = (*mcpserver.MCPServer)(nil)

// Registry is an ordered set of operations backed by MCP tool handlers.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]mcpserver.ServerTool
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]mcpserver.ServerTool)}
}

// AddTool registers tool. A second registration under the same name
// replaces the handler and keeps the original position.
func (r *Registry) AddTool(tool mcp.Tool, handler mcpserver.ToolHandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[tool.Name]; !ok {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = mcpserver.ServerTool{Tool: tool, Handler: handler}
}

// Subset returns a registry with only the named operations, in the given
// order. Unknown names are an error.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub := NewRegistry()
	for _, name := range names {
		st, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("unknown operation %q", name)
		}
		sub.tools[name] = st
		sub.order = append(sub.order, name)
	}
	return sub, nil
}

// Names returns operation names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []mcpserver.ServerTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcpserver.ServerTool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Operations describes the registry for a reasoner.
func (r *Registry) Operations() []llm.Operation {
	tools := r.Tools()
	ops := make([]llm.Operation, 0, len(tools))
	for _, st := range tools {
		var params any = st.Tool.InputSchema
		if len(st.Tool.RawInputSchema) > 0 {
			params = st.Tool.RawInputSchema
		}
		ops = append(ops, llm.Operation{
			Name:        st.Tool.Name,
			Description: st.Tool.Description,
			Parameters:  params,
		})
	}
	return ops
}

// AddTo registers every operation on an MCP server.
func (r *Registry) AddTo(s *mcpserver.MCPServer) {
	s.AddTools(r.Tools()...)
}

// Execute runs one operation request and returns its tagged result. It
// never returns an error: unknown operations, handler errors and panics
// become StatusError results.
func (r *Registry) Execute(ctx context.Context, req llm.OperationRequest) (res llm.OperationResult) {
	res = llm.OperationResult{RequestID: req.ID, Name: req.Name}

	r.mu.RLock()
	st, ok := r.tools[req.Name]
	r.mu.RUnlock()
	if !ok {
		return errorResult(res, fmt.Sprintf("unknown operation %q; available: %s", req.Name, strings.Join(r.Names(), ", ")))
	}

	defer func() {
		if p := recover(); p != nil {
			res = errorResult(res, fmt.Sprintf("operation %s panicked: %v", req.Name, p))
		}
	}()

	call := mcp.CallToolRequest{}
	call.Params.Name = req.Name
	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}
	call.Params.Arguments = args

	out, err := st.Handler(ctx, call)
	if err != nil {
		return errorResult(res, err.Error())
	}
	if out == nil {
		return errorResult(res, "operation returned no result")
	}

	text := resultText(out)
	res.Content = text
	res.Status = statusOf(text, out.IsError)
	return res
}

func errorResult(res llm.OperationResult, msg string) llm.OperationResult {
	payload, _ := json.Marshal(map[string]string{"status": StatusError, "message": msg})
	res.Status = StatusError
	res.Content = string(payload)
	return res
}

func resultText(out *mcp.CallToolResult) string {
	var parts []string
	for _, c := range out.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// statusOf reads the "status" field of a JSON payload, falling back to
// error or success.
func statusOf(text string, isError bool) string {
	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(text), &probe); err == nil && probe.Status != "" {
		return probe.Status
	}
	if isError {
		return StatusError
	}
	return StatusSuccess
}

// SortedNames returns names sorted alphabetically, for documentation.
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
