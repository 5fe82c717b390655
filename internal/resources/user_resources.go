package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/preferences"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/timeutil"
	"github.com/teemow/calendaragent/internal/tools/common"
)

// Resource URIs.
const (
	EventsURI      = "calendar://events.ics"
	WeekSummaryURI = "calendar://summary/week"
	PreferencesURI = "calendar://preferences"
)

// ResourceAdder is the subset of the MCP server used for registration.
type ResourceAdder interface {
	AddResource(resource mcp.Resource, handler mcpserver.ResourceHandlerFunc)
}

// RegisterUserResources registers the per-user calendar resources.
func RegisterUserResources(s ResourceAdder, sc *server.ServerContext) error {
	eventsResource := mcp.NewResource(
		EventsURI,
		"Calendar",
		mcp.WithResourceDescription("All events of the current user as an iCalendar document"),
		mcp.WithMIMEType("text/calendar"),
	)
	s.AddResource(eventsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleEvents(ctx, request, sc)
	})

	summaryResource := mcp.NewResource(
		WeekSummaryURI,
		"This Week",
		mcp.WithResourceDescription("Event counts, tag and time-of-day distribution for the current week"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(summaryResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleWeekSummary(ctx, request, sc)
	})

	preferencesResource := mcp.NewResource(
		PreferencesURI,
		"Scheduling Preferences",
		mcp.WithResourceDescription("Preferences the assistant has learned for the current user"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(preferencesResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handlePreferences(ctx, request, sc)
	})

	return nil
}

// userFromContext returns the authenticated user, falling back to the
// default user for local transports.
func userFromContext(ctx context.Context) string {
	if id, ok := server.UserIDFromContext(ctx); ok {
		return id
	}
	return common.DefaultUserID
}

func handleEvents(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	events, err := sc.Engine().List(ctx, userFromContext(ctx), calendar.ListQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/calendar",
			Text:     calendar.ExportICS(events),
		},
	}, nil
}

func handleWeekSummary(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	start, end := timeutil.PeriodRange(sc.Now(), timeutil.PeriodWeekly)
	summary, err := sc.Engine().Summary(ctx, userFromContext(ctx), calendar.TimeRange{Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize events: %w", err)
	}
	return jsonContents(request.Params.URI, summary)
}

func handlePreferences(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	prefs, err := sc.Preferences().Retrieve(ctx, userFromContext(ctx), preferences.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	if prefs == nil {
		prefs = []preferences.Preference{}
	}
	return jsonContents(request.Params.URI, map[string]any{"preferences": prefs, "count": len(prefs)})
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
