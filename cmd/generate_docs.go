package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/instrumentation"
	"github.com/teemow/calendaragent/internal/orchestrator"
	"github.com/teemow/calendaragent/internal/preferences"
	"github.com/teemow/calendaragent/internal/server"
)

func newGenerateDocsCmd() *cobra.Command {
	var (
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools and for the
operations each agent may call. This command introspects the registered tools,
so the documentation always matches the actual tool definitions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			markdown, err := generateDocs()
			if err != nil {
				return err
			}
			if outputFile != "" {
				if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
					return fmt.Errorf("failed to write output file: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Documentation written to: %s\n", outputFile)
				return nil
			}
			_, err = io.WriteString(cmd.OutOrStdout(), markdown)
			return err
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// generateDocs registers every tool against throwaway in-memory stores and
// renders the reference. No LLM is needed; handlers are never invoked.
func generateDocs() (string, error) {
	sc := newDocsServerContext()
	defer func() {
		_ = sc.Shutdown()
	}()

	mcpSrv := mcpserver.NewMCPServer("calendaragent", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := orchestrator.RegisterOperations(mcpSrv, sc); err != nil {
		return "", fmt.Errorf("failed to register calendar tools: %w", err)
	}
	if err := orchestrator.RegisterChatTools(mcpSrv, sc, nil); err != nil {
		return "", fmt.Errorf("failed to register assistant tools: %w", err)
	}

	agents, err := orchestrator.NewAgents(sc, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build agents: %w", err)
	}

	serverTools := mcpSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}

	access := make(map[string][]string, len(agents.All()))
	for _, loop := range agents.All() {
		access[loop.Name()] = loop.Registry().SortedNames()
	}

	return generateToolsMarkdown(tools, access), nil
}

func newDocsServerContext() *server.ServerContext {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := calendar.NewEngine(calendar.NewMemoryStore(), calendar.WithLogger(logger))
	prefs := preferences.NewStore(preferences.NewMemoryRepository(), preferences.NewHashEmbedder(), logger)
	provider := instrumentation.NewNoopProvider()
	return server.NewServerContext(context.Background(), engine, prefs,
		server.WithLogger(logger),
		server.WithLocation(time.UTC),
		server.WithInstrumentation(provider.Metrics(), instrumentation.NewAuditLogger(logger)),
	)
}

// generateToolsMarkdown renders the MCP tool reference. access maps agent
// names to the operations each agent may call.
func generateToolsMarkdown(tools []mcp.Tool, access map[string][]string) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("This document provides a complete reference of all tools available when running calendaragent as an MCP server.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	// Group tools by category
	toolsByCategory := groupToolsByCategory(tools)

	// Table of contents
	sb.WriteString("## Table of Contents\n\n")
	categories := make([]string, 0, len(toolsByCategory))
	for category := range toolsByCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", category, anchor(category)))
	}
	if len(access) > 0 {
		sb.WriteString(fmt.Sprintf("- [Agent Operations](#%s)\n", anchor("Agent Operations")))
	}
	sb.WriteString("\n")

	// User scoping note
	sb.WriteString("## Users\n\n")
	sb.WriteString("Every tool accepts an optional `user_id` parameter naming the calendar owner:\n\n")
	sb.WriteString("- **stdio:** defaults to `--user` or `CALENDARAGENT_USER`, then `default`\n")
	sb.WriteString("- **streamable-http:** defaults to the `X-User-ID` header or the bearer token identity\n")
	sb.WriteString("- **Isolation:** events and preferences are never shared between users\n\n")

	// Generate documentation for each category
	for _, category := range categories {
		categoryTools := toolsByCategory[category]
		sort.Slice(categoryTools, func(i, j int) bool {
			return categoryTools[i].Name < categoryTools[j].Name
		})

		sb.WriteString(fmt.Sprintf("## %s\n\n", category))

		for _, tool := range categoryTools {
			sb.WriteString(generateToolMarkdown(tool))
			sb.WriteString("\n")
		}
	}

	if len(access) > 0 {
		sb.WriteString("## Agent Operations\n\n")
		sb.WriteString("Operations each agent may call while handling an `assistant_chat` message.\n\n")
		agentNames := make([]string, 0, len(access))
		for name := range access {
			agentNames = append(agentNames, name)
		}
		sort.Strings(agentNames)
		for _, name := range agentNames {
			ops := make([]string, 0, len(access[name]))
			for _, op := range access[name] {
				ops = append(ops, "`"+op+"`")
			}
			sb.WriteString(fmt.Sprintf("- **%s:** %s\n", name, strings.Join(ops, ", ")))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func anchor(heading string) string {
	return strings.ToLower(strings.ReplaceAll(heading, " ", "-"))
}

func groupToolsByCategory(tools []mcp.Tool) map[string][]mcp.Tool {
	categories := make(map[string][]mcp.Tool)

	for _, tool := range tools {
		category := getCategoryFromToolName(tool.Name)
		categories[category] = append(categories[category], tool)
	}

	return categories
}

func getCategoryFromToolName(name string) string {
	switch {
	case strings.HasPrefix(name, "assistant_"):
		return "Assistant Tools"
	case strings.Contains(name, "preference"):
		return "Preference Tools"
	case strings.HasSuffix(name, "_plan"):
		return "Planning Tools"
	case strings.HasPrefix(name, "call_"):
		return "Delegation Tools"
	case strings.Contains(name, "summary"), strings.HasPrefix(name, "analyze_"), name == "get_events_detail":
		return "Summary Tools"
	case strings.Contains(name, "event"), strings.Contains(name, "slot"):
		return "Calendar Tools"
	default:
		return "Other"
	}
}

func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	// Tool name
	sb.WriteString(fmt.Sprintf("### %s\n\n", tool.Name))

	// Description
	if tool.Description != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", tool.Description))
	}

	// Input schema
	if len(tool.InputSchema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")

		// Sort properties for consistent output
		propNames := make([]string, 0, len(tool.InputSchema.Properties))
		for name := range tool.InputSchema.Properties {
			propNames = append(propNames, name)
		}
		sort.Strings(propNames)

		for _, name := range propNames {
			prop := tool.InputSchema.Properties[name]

			requiredStr := "optional"
			if contains(tool.InputSchema.Required, name) {
				requiredStr = "required"
			}

			propMap, ok := prop.(map[string]interface{})
			if !ok {
				continue
			}

			propType := getPropertyType(propMap)

			sb.WriteString(fmt.Sprintf("- `%s` (%s, %s): ", name, propType, requiredStr))

			if desc, ok := propMap["description"].(string); ok {
				sb.WriteString(desc)
			} else {
				sb.WriteString(fmt.Sprintf("%s parameter", propType))
			}

			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func getPropertyType(prop map[string]interface{}) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
