package conversation

import (
	"fmt"
	"sync"
	"time"

	"github.com/teemow/calendaragent/internal/llm"
)

// State is the data of one conversation.
type State struct {
	UserID      string         `json:"user_id"`
	Messages    []llm.Message  `json:"messages"`
	Intent      string         `json:"current_intent"`
	PendingPlan *PlannerOutput `json:"planner_output,omitempty"`
	LastSummary *SummaryOutput `json:"summary_output,omitempty"`
	Trace       []string       `json:"trace"`
	Turns       int            `json:"turns"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// AwaitingFeedback reports whether a plan waits for confirmation.
func (s State) AwaitingFeedback() bool {
	return s.PendingPlan != nil
}

// Session is one conversation. Callers hold Lock for the whole turn and
// mutate State through the methods below.
type Session struct {
	mu    sync.Mutex
	state State
	now   func() time.Time
}

func newSession(userID string, now func() time.Time) *Session {
	t := now()
	return &Session{
		state: State{
			UserID:    userID,
			Messages:  []llm.Message{},
			Trace:     []string{},
			CreatedAt: t,
			UpdatedAt: t,
		},
		now: now,
	}
}

// Lock acquires the session for one turn.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// UserID returns the owner of the conversation.
func (s *Session) UserID() string { return s.state.UserID }

// Messages returns the history. The slice must not be modified.
func (s *Session) Messages() []llm.Message { return s.state.Messages }

// Append adds messages to the history.
func (s *Session) Append(msgs ...llm.Message) {
	s.state.Messages = append(s.state.Messages, msgs...)
	s.touch()
}

// Tracef appends a formatted trace line.
func (s *Session) Tracef(format string, args ...any) {
	s.state.Trace = append(s.state.Trace, fmt.Sprintf(format, args...))
	s.touch()
}

// TraceLen returns the number of trace lines, used to slice a turn's trace.
func (s *Session) TraceLen() int { return len(s.state.Trace) }

// TraceSince returns the trace lines added after mark.
func (s *Session) TraceSince(mark int) []string {
	if mark > len(s.state.Trace) {
		mark = len(s.state.Trace)
	}
	return append([]string(nil), s.state.Trace[mark:]...)
}

// SetIntent records the current intent and counts the turn.
func (s *Session) SetIntent(intent string) {
	s.state.Intent = intent
	s.state.Turns++
	s.touch()
}

// Intent returns the current intent.
func (s *Session) Intent() string { return s.state.Intent }

// PendingPlan returns the plan awaiting feedback, or nil.
func (s *Session) PendingPlan() *PlannerOutput { return s.state.PendingPlan }

// SetPendingPlan holds plan for feedback; nil drops it.
func (s *Session) SetPendingPlan(plan *PlannerOutput) {
	s.state.PendingPlan = plan
	s.touch()
}

// SetSummary stores the latest summary.
func (s *Session) SetSummary(summary *SummaryOutput) {
	s.state.LastSummary = summary
	s.touch()
}

// Snapshot returns a copy of the state that is safe to read after Unlock.
func (s *Session) Snapshot() State {
	st := s.state
	st.Messages = append([]llm.Message(nil), s.state.Messages...)
	st.Trace = append([]string(nil), s.state.Trace...)
	if s.state.PendingPlan != nil {
		plan := *s.state.PendingPlan
		plan.Tasks = append([]TaskItem(nil), plan.Tasks...)
		plan.Conflicts = append([]string(nil), plan.Conflicts...)
		st.PendingPlan = &plan
	}
	if s.state.LastSummary != nil {
		summary := *s.state.LastSummary
		st.LastSummary = &summary
	}
	return st
}

func (s *Session) touch() {
	s.state.UpdatedAt = s.now()
}
