package preference_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/preferences"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/tools/common"
)

// RegisterPreferenceTools registers the preference operations.
func RegisterPreferenceTools(s agent.ToolAdder, sc *server.ServerContext) error {
	storeTool := mcp.NewTool("store_preference",
		mcp.WithDescription("Remember a user preference. Storing an existing key replaces its value."),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Preference category, e.g. 'work_time', 'meeting_preference', 'break_time'"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("The preference itself, e.g. 'most productive 9-12'"),
		),
		mcp.WithString("description",
			mcp.Description("Optional context for the preference"),
		),
		mcp.WithNumber("weight",
			mcp.Description("Importance between 0 and 1 (default: 1)"),
		),
	)
	s.AddTool(storeTool, common.InstrumentedToolHandler("store_preference", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleStorePreference(ctx, request, sc)
		}))

	getTool := mcp.NewTool("get_preferences",
		mcp.WithDescription("Look up stored preferences: by similarity to a query, by exact key, or all of them"),
		mcp.WithString("query",
			mcp.Description("Free text to rank preferences by similarity"),
		),
		mcp.WithString("key",
			mcp.Description("Exact preference key"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum matches for a query (default: 5)"),
		),
	)
	s.AddTool(getTool, common.InstrumentedToolHandler("get_preferences", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetPreferences(ctx, request, sc)
		}))

	clearTool := mcp.NewTool("clear_preferences",
		mcp.WithDescription("Delete every stored preference of the user"),
	)
	s.AddTool(clearTool, common.InstrumentedToolHandler("clear_preferences", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleClearPreferences(ctx, request, sc)
		}))

	weightTool := mcp.NewTool("update_preference_weight",
		mcp.WithDescription("Change how much a preference counts"),
		mcp.WithString("preference_id",
			mcp.Required(),
			mcp.Description("ID of the preference"),
		),
		mcp.WithNumber("weight",
			mcp.Required(),
			mcp.Description("New weight between 0 and 1"),
		),
	)
	s.AddTool(weightTool, common.InstrumentedToolHandler("update_preference_weight", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdateWeight(ctx, request, sc)
		}))

	deleteTool := mcp.NewTool("delete_preference",
		mcp.WithDescription("Delete one stored preference"),
		mcp.WithString("preference_id",
			mcp.Required(),
			mcp.Description("ID of the preference"),
		),
	)
	s.AddTool(deleteTool, common.InstrumentedToolHandler("delete_preference", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeletePreference(ctx, request, sc)
		}))

	summaryTool := mcp.NewTool("preference_summary",
		mcp.WithDescription("Count and weight statistics of the stored preferences"),
	)
	s.AddTool(summaryTool, common.InstrumentedToolHandler("preference_summary", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handlePreferenceSummary(ctx, request, sc)
		}))

	return nil
}

// firstString returns the first non-empty argument among keys.
func firstString(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := common.String(args, k); v != "" {
			return v
		}
	}
	return ""
}

func parseWeight(args map[string]any, def float64) (float64, error) {
	w := common.Float(args, "weight", def)
	if w < 0 || w > 1 {
		return 0, fmt.Errorf("weight must be between 0 and 1, got %v", w)
	}
	return w, nil
}

func handleStorePreference(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	key := firstString(args, "key", "category")
	value := firstString(args, "value", "preference")
	if key == "" || value == "" {
		return common.Failure("key and value are required"), nil
	}
	weight, err := parseWeight(args, 1)
	if err != nil {
		return common.Failure("%v", err), nil
	}

	p, created, err := sc.Preferences().Put(ctx, userID, key, value, common.String(args, "description"), weight)
	if err != nil {
		return common.FromError(err), nil
	}

	verb := "updated"
	if created {
		verb = "stored"
	}
	return common.Success(common.Payload{
		"preference": p,
		"created":    created,
		"message":    fmt.Sprintf("preference %s %s", key, verb),
	}), nil
}

func handleGetPreferences(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	prefs, err := sc.Preferences().Retrieve(ctx, userID, preferences.Query{
		Text: common.String(args, "query"),
		Key:  firstString(args, "key", "category"),
		TopK: common.Int(args, "top_k", preferences.DefaultTopK),
	})
	if err != nil {
		return common.FromError(err), nil
	}
	if prefs == nil {
		prefs = []preferences.Preference{}
	}

	payload := common.Payload{
		"preferences": prefs,
		"count":       len(prefs),
	}
	if len(prefs) == 0 {
		payload["message"] = "no matching preferences"
	}
	return common.Success(payload), nil
}

func handleClearPreferences(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	userID := common.UserFromArgs(ctx, request.GetArguments())

	n, err := sc.Preferences().Clear(ctx, userID)
	if err != nil {
		return common.FromError(err), nil
	}
	return common.Success(common.Payload{
		"cleared": n,
		"message": fmt.Sprintf("cleared %d preference(s)", n),
	}), nil
}

// ownedPreference returns the preference with id if userID owns it.
func ownedPreference(ctx context.Context, sc *server.ServerContext, userID, id string) (preferences.Preference, error) {
	prefs, err := sc.Preferences().Retrieve(ctx, userID, preferences.Query{})
	if err != nil {
		return preferences.Preference{}, err
	}
	for _, p := range prefs {
		if p.ID == id {
			return p, nil
		}
	}
	return preferences.Preference{}, fmt.Errorf("%w: %s", preferences.ErrNotFound, id)
}

func handleUpdateWeight(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	id, err := common.RequiredString(args, "preference_id")
	if err != nil {
		return common.Failure("%v", err), nil
	}
	if !common.HasKey(args, "weight") {
		return common.Failure("weight is required"), nil
	}
	weight, err := parseWeight(args, 0)
	if err != nil {
		return common.Failure("%v", err), nil
	}
	if _, err := ownedPreference(ctx, sc, userID, id); err != nil {
		return common.FromError(err), nil
	}

	old, err := sc.Preferences().UpdateWeight(ctx, id, weight)
	if err != nil {
		return common.FromError(err), nil
	}
	return common.Success(common.Payload{
		"preference_id": id,
		"old_weight":    old,
		"new_weight":    weight,
	}), nil
}

func handleDeletePreference(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	id, err := common.RequiredString(args, "preference_id")
	if err != nil {
		return common.Failure("%v", err), nil
	}
	p, err := ownedPreference(ctx, sc, userID, id)
	if err != nil {
		return common.FromError(err), nil
	}
	if err := sc.Preferences().Delete(ctx, id); err != nil {
		return common.FromError(err), nil
	}
	return common.Success(common.Payload{
		"preference_id": id,
		"message":       fmt.Sprintf("preference %s deleted", p.Key),
	}), nil
}

func handlePreferenceSummary(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	userID := common.UserFromArgs(ctx, request.GetArguments())

	summary, err := sc.Preferences().Summarize(ctx, userID)
	if err != nil {
		return common.FromError(err), nil
	}
	return common.Success(common.Payload{"summary": summary}), nil
}
