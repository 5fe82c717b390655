// Package orchestrator runs a conversation turn: it classifies the user's
// utterance, hands it to the scheduler, planner or summary agent, and gates
// proposed plans behind a confirm/revise/end decision before anything is
// written to the calendar.
//
// The three agents share one operation set registered from the tools
// packages; each agent sees only its subset. The planner can delegate to the
// other two through call_scheduler_agent and call_summary_agent.
package orchestrator
