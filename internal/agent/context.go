package agent

import "context"

type agentNameKey struct{}

// WithAgentName records the running agent in ctx.
func WithAgentName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, agentNameKey{}, name)
}

// NameFromContext returns the running agent, or "mcp" when an operation is
// invoked directly by an MCP client.
func NameFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(agentNameKey{}).(string); ok && name != "" {
		return name
	}
	return "mcp"
}
