package orchestrator

import (
	"fmt"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/llm"
	"github.com/teemow/calendaragent/internal/router"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/tools/calendar_tools"
	"github.com/teemow/calendaragent/internal/tools/planning_tools"
	"github.com/teemow/calendaragent/internal/tools/preference_tools"
	"github.com/teemow/calendaragent/internal/tools/summary_tools"
)

// Operation subsets per agent.
var (
	schedulerOperations = []string{
		"add_event", "update_event", "remove_event", "remove_events",
		"get_event", "list_events", "get_free_slots", "commit_plan",
		"store_preference", "get_preferences", "update_preference_weight",
		"delete_preference", "clear_preferences", "preference_summary",
	}
	plannerOperations = []string{
		"call_scheduler_agent", "call_summary_agent", "propose_plan",
		"get_free_slots", "list_events",
		"store_preference", "get_preferences", "clear_preferences",
	}
	summaryOperations = []string{
		"get_events_summary", "get_events_detail", "analyze_time_usage",
		"list_events", "record_summary",
	}
)

// RegisterOperations registers every operation that needs no reasoner:
// calendar, summary, preference, propose_plan and commit_plan. It is used
// both for the agents and for the MCP server.
func RegisterOperations(s agent.ToolAdder, sc *server.ServerContext) error {
	if err := calendar_tools.RegisterCalendarTools(s, sc); err != nil {
		return fmt.Errorf("failed to register calendar tools: %w", err)
	}
	if err := summary_tools.RegisterSummaryTools(s, sc); err != nil {
		return fmt.Errorf("failed to register summary tools: %w", err)
	}
	if err := preference_tools.RegisterPreferenceTools(s, sc); err != nil {
		return fmt.Errorf("failed to register preference tools: %w", err)
	}
	if err := planning_tools.RegisterPlanTools(s, sc); err != nil {
		return fmt.Errorf("failed to register plan tools: %w", err)
	}
	if err := planning_tools.RegisterCommitTools(s, sc); err != nil {
		return fmt.Errorf("failed to register commit tools: %w", err)
	}
	return nil
}

// Agents holds the three specialist loops.
type Agents struct {
	Scheduler *agent.Loop
	Planner   *agent.Loop
	Summary   *agent.Loop
}

// NewAgents builds the scheduler, summary and planner loops over reasoner.
// The planner delegates to the other two.
func NewAgents(sc *server.ServerContext, reasoner llm.Reasoner, opts ...agent.Option) (*Agents, error) {
	all := agent.NewRegistry()
	if err := RegisterOperations(all, sc); err != nil {
		return nil, err
	}

	schedulerOps, err := all.Subset(schedulerOperations...)
	if err != nil {
		return nil, fmt.Errorf("scheduler operations: %w", err)
	}
	summaryOps, err := all.Subset(summaryOperations...)
	if err != nil {
		return nil, fmt.Errorf("summary operations: %w", err)
	}

	a := &Agents{
		Scheduler: agent.NewLoop(router.AgentScheduler, schedulerInstruction, reasoner, schedulerOps, opts...),
		Summary:   agent.NewLoop(router.AgentSummary, summaryInstruction, reasoner, summaryOps, opts...),
	}

	if err := planning_tools.RegisterDelegationTools(all, sc, a.Scheduler, a.Summary); err != nil {
		return nil, fmt.Errorf("failed to register delegation tools: %w", err)
	}
	plannerOps, err := all.Subset(plannerOperations...)
	if err != nil {
		return nil, fmt.Errorf("planner operations: %w", err)
	}
	a.Planner = agent.NewLoop(router.AgentPlanner, plannerInstruction, reasoner, plannerOps, opts...)
	return a, nil
}

// ByName returns the loop for an agent name from router.Route.
func (a *Agents) ByName(name string) *agent.Loop {
	switch name {
	case router.AgentPlanner:
		return a.Planner
	case router.AgentSummary:
		return a.Summary
	default:
		return a.Scheduler
	}
}

// All returns the loops in a stable order.
func (a *Agents) All() []*agent.Loop {
	return []*agent.Loop{a.Scheduler, a.Planner, a.Summary}
}
