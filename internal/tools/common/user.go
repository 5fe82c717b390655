package common

import (
	"context"

	"github.com/teemow/calendaragent/internal/server"
)

// DefaultUserID is used when no caller identity is available.
const DefaultUserID = "default"

// UserFromArgs resolves the calendar owner for an operation call.
//
// Priority order:
//  1. User id from context (set by the orchestrator or HTTP session)
//  2. Explicit "user_id" argument
//  3. DefaultUserID
func UserFromArgs(ctx context.Context, args map[string]any) string {
	if id, ok := server.UserIDFromContext(ctx); ok {
		return id
	}
	if id, ok := args["user_id"].(string); ok && id != "" {
		return id
	}
	return DefaultUserID
}
