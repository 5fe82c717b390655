package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/conversation"
	"github.com/teemow/calendaragent/internal/instrumentation"
	"github.com/teemow/calendaragent/internal/llm"
	"github.com/teemow/calendaragent/internal/logging"
	"github.com/teemow/calendaragent/internal/router"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/tools/batch"
	"github.com/teemow/calendaragent/internal/tools/common"
)

// Response statuses.
const (
	StatusSuccess = "success"
	// StatusAwaitingConfirmation means a plan is pending and the next
	// utterance is read as feedback.
	StatusAwaitingConfirmation = "awaiting_confirmation"
	StatusError                = "error"
)

// DefaultHistoryLimit bounds the messages passed to an agent run.
const DefaultHistoryLimit = 20

// ErrEmptyUtterance is returned by Submit for blank input.
var ErrEmptyUtterance = errors.New("utterance is empty")

// Response is the result of one turn.
type Response struct {
	Status       string                      `json:"status"`
	ResponseText string                      `json:"response_text"`
	Intent       string                      `json:"intent"`
	Trace        []string                    `json:"trace"`
	Plan         *conversation.PlannerOutput `json:"plan,omitempty"`
	Summary      *conversation.SummaryOutput `json:"summary,omitempty"`
}

// Orchestrator routes utterances to the agents and keeps per-user state.
type Orchestrator struct {
	router       *router.Router
	agents       *Agents
	sessions     *conversation.Manager
	sc           *server.ServerContext
	historyLimit int
	logger       *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHistoryLimit sets how many trailing messages an agent run sees.
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an Orchestrator.
func New(r *router.Router, agents *Agents, sessions *conversation.Manager, sc *server.ServerContext, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		router:       r,
		agents:       agents,
		sessions:     sessions,
		sc:           sc,
		historyLimit: DefaultHistoryLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit processes one utterance of userID's conversation. Turns of one
// user run one at a time; failures of the agents are reported in the
// Response with status "error" and the trace so far.
func (o *Orchestrator) Submit(ctx context.Context, userID, utterance string) (*Response, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, ErrEmptyUtterance
	}
	if userID == "" {
		userID = common.DefaultUserID
	}
	ctx = server.WithUserID(ctx, userID)

	attrs := instrumentation.NewSpanAttributeBuilder().
		WithUserHash(logging.AnonymizeUser(userID)).
		Build()
	ctx, span := instrumentation.StartSpan(ctx, "conversation.turn", attrs...)
	defer span.End()

	sess := o.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()

	t := &turn{o: o, sess: sess, mark: sess.TraceLen(), logger: logging.WithUser(o.logger, userID)}
	sess.Append(llm.UserMessage(utterance))
	sess.Tracef("INPUT -> %s", logging.Truncate(utterance, 200))

	resp := t.run(ctx, utterance)
	sess.Tracef("TURN -> %s", resp.Status)
	resp.Trace = sess.TraceSince(t.mark)
	resp.Intent = sess.Intent()

	if resp.Status == StatusError {
		instrumentation.SetSpanError(span, errors.New(resp.ResponseText))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	return resp, nil
}

// Reset discards userID's conversation. It reports whether one existed.
func (o *Orchestrator) Reset(userID string) bool {
	return o.sessions.Reset(userID)
}

// State returns a snapshot of userID's conversation.
func (o *Orchestrator) State(userID string) (conversation.State, bool) {
	sess, ok := o.sessions.Peek(userID)
	if !ok {
		return conversation.State{}, false
	}
	sess.Lock()
	defer sess.Unlock()
	return sess.Snapshot(), true
}

// turn carries one Submit call. The session is locked for its lifetime.
type turn struct {
	o      *Orchestrator
	sess   *conversation.Session
	mark   int
	class  router.Classification
	logger *slog.Logger
}

func (t *turn) run(ctx context.Context, utterance string) *Response {
	if t.sess.PendingPlan() != nil {
		if resp, handled := t.feedback(ctx, utterance); handled {
			return resp
		}
	}

	t.class = t.o.router.Classify(ctx, utterance)
	t.sess.SetIntent(t.class.Intent)
	t.sess.Tracef("ROUTER -> %s (confidence %.2f, %s)", t.class.Intent, t.class.Confidence, t.class.Method)
	t.logger.Info("utterance routed", logging.Intent(t.class.Intent), slog.String("method", t.class.Method))

	loop := t.o.agents.ByName(router.Route(t.class.Intent))
	return t.runAgent(ctx, loop)
}

// feedback handles an utterance while a plan is pending. It returns false
// when the utterance is not feedback and must be routed as a new request.
func (t *turn) feedback(ctx context.Context, utterance string) (*Response, bool) {
	decision, matched := ClassifyFeedback(utterance)
	t.o.sc.Metrics().RecordPlanDecision(ctx, string(decision))
	t.sess.Tracef("FEEDBACK -> %s", decision)
	t.logger.Info("plan feedback", slog.String("decision", string(decision)), slog.Bool("matched", matched))

	switch decision {
	case DecisionConfirmed:
		return t.commit(ctx), true
	case DecisionRevise:
		t.sess.SetIntent(router.IntentPlanning)
		t.class = router.Classification{Intent: router.IntentPlanning, Confidence: 1, Method: "feedback"}
		return t.runAgent(ctx, t.o.agents.Planner), true
	default:
		t.sess.SetPendingPlan(nil)
		if matched {
			text := "Okay, I discarded the plan. Nothing was added to your calendar."
			t.sess.Append(llm.AssistantMessage(text))
			return &Response{Status: StatusSuccess, ResponseText: text}, true
		}
		return nil, false
	}
}

// commit writes the pending plan through the scheduler. If the scheduler
// never calls commit_plan, the tasks are committed directly so a confirmed
// plan is not lost.
func (t *turn) commit(ctx context.Context) *Response {
	plan := t.sess.PendingPlan()
	t.sess.SetPendingPlan(nil)
	t.sess.SetIntent(router.IntentScheduling)

	tasks, err := json.Marshal(plan.Tasks)
	if err != nil {
		return t.fail(fmt.Errorf("failed to encode plan: %w", err))
	}
	request := fmt.Sprintf("The user confirmed this plan. Add its tasks to the calendar with commit_plan, then report the result.\ntasks: %s", tasks)

	loop := t.o.agents.Scheduler
	outcome, runErr := loop.Run(ctx, []llm.Message{llm.UserMessage(request)})
	steps := stepsOf(outcome, runErr)
	t.traceSteps(loop.Name(), steps)

	if last, ok := lastCommit(results(steps, "commit_plan")); ok {
		t.sess.Tracef("COMMIT -> %d of %d task(s) committed, %d conflict(s)", last.Successful, last.Total, last.Conflicts)
		status := StatusSuccess
		if last.Successful == 0 {
			status = StatusError
		}
		text := "The plan was committed, but the scheduler did not finish: " + last.Message
		if outcome != nil {
			text = outcome.Answer
		}
		t.sess.Append(llm.AssistantMessage(text))
		return &Response{Status: status, ResponseText: text}
	}

	if runErr != nil {
		t.logger.Warn("scheduler failed to commit plan, committing directly", logging.Err(runErr))
	}
	userID := t.sess.UserID()
	br := batch.CommitTasks(ctx, t.o.sc.Engine(), userID, plan.Tasks, false)
	for _, r := range br.Results {
		t.o.sc.Metrics().RecordCalendarMutation(ctx, "add", r.Status)
	}
	t.sess.Tracef("COMMIT -> %d of %d task(s) committed, %d conflict(s)", br.Successful, br.Total, br.Conflicts)

	text := commitText(br)
	t.sess.Append(llm.AssistantMessage(text))
	status := StatusSuccess
	if br.Successful == 0 && br.Total > 0 {
		status = StatusError
	}
	return &Response{Status: status, ResponseText: text}
}

func commitText(br batch.BatchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Committed %d of %d task(s).", br.Successful, br.Total)
	for _, r := range br.Results {
		switch r.Status {
		case agent.StatusSuccess, agent.StatusWarning:
			continue
		case agent.StatusConflict:
			fmt.Fprintf(&b, "\n- %s: conflicts with an existing event", r.Title)
		default:
			fmt.Fprintf(&b, "\n- %s: %s", r.Title, r.Error)
		}
	}
	return b.String()
}

// runAgent runs loop over the conversation history and folds its outcome
// into the session.
func (t *turn) runAgent(ctx context.Context, loop *agent.Loop) *Response {
	history := append([]llm.Message{llm.UserMessage(t.contextNote())}, window(t.sess.Messages(), t.o.historyLimit)...)

	outcome, err := loop.Run(ctx, history)
	t.traceSteps(loop.Name(), stepsOf(outcome, err))
	if err != nil {
		return t.fail(err)
	}
	t.sess.Append(outcome.Messages...)

	resp := &Response{Status: StatusSuccess, ResponseText: outcome.Answer}

	if plan := lastPlan(outcome.Results("propose_plan")); plan != nil {
		t.sess.SetPendingPlan(plan)
		t.sess.Tracef("PLAN -> %d task(s), %d conflict(s) pending confirmation", len(plan.Tasks), len(plan.Conflicts))
	}
	if plan := t.sess.PendingPlan(); plan != nil {
		resp.Status = StatusAwaitingConfirmation
		resp.Plan = plan
	}

	if summary := lastSummary(outcome.Results("record_summary")); summary != nil {
		t.sess.SetSummary(summary)
		t.sess.Tracef("SUMMARY -> %s, %d recommendation(s)", summary.Period, summary.RecommendationCount())
		resp.Summary = summary
	}
	return resp
}

func (t *turn) fail(err error) *Response {
	text := "Sorry, I could not complete that request: " + err.Error()
	if errors.Is(err, agent.ErrIterationLimitExceeded) {
		text = "Sorry, that took too many steps and I stopped. Please try a more specific request."
	}
	t.sess.Tracef("ERROR -> %v", err)
	t.logger.Error("turn failed", logging.Err(err))
	return &Response{Status: StatusError, ResponseText: text}
}

func (t *turn) contextNote() string {
	now := t.o.sc.Now()
	start, end := t.o.sc.WorkHours()
	params, _ := json.Marshal(t.class.Params)
	return fmt.Sprintf(contextNote,
		now.Format("2006-01-02T15:04:05Z07:00"), now.Weekday(), t.o.sc.Location(),
		start, end,
		t.class.Intent, t.class.Confidence, params)
}

func (t *turn) traceSteps(agentName string, steps []agent.Step) {
	label := strings.ToUpper(agentName)
	for _, step := range steps {
		switch step.State {
		case agent.StateAct:
			parts := make([]string, 0, len(step.Results))
			for _, r := range step.Results {
				parts = append(parts, r.Name+"="+r.Status)
			}
			t.sess.Tracef("%s -> act %s", label, strings.Join(parts, ", "))
		case agent.StateDone:
			t.sess.Tracef("%s -> done after %d iteration(s)", label, step.Iteration)
		case agent.StateError:
			t.sess.Tracef("%s -> error: %s", label, step.Error)
		}
	}
}

// stepsOf returns the trace of a run, including one that hit the
// iteration limit or stopped on an error.
func stepsOf(outcome *agent.Outcome, err error) []agent.Step {
	if outcome != nil {
		return outcome.Trace
	}
	var limitErr *agent.IterationLimitError
	if errors.As(err, &limitErr) {
		return limitErr.Trace
	}
	var runErr *agent.RunError
	if errors.As(err, &runErr) {
		return runErr.Trace
	}
	return nil
}

func results(steps []agent.Step, name string) []llm.OperationResult {
	return (&agent.Outcome{Trace: steps}).Results(name)
}

// commitSummary is the part of a commit_plan payload the orchestrator reads.
type commitSummary struct {
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Conflicts  int    `json:"conflicts"`
	Message    string `json:"message"`
}

// lastCommit returns the last commit_plan result that reached the calendar.
// Calls rejected before any task was tried do not count.
func lastCommit(rs []llm.OperationResult) (commitSummary, bool) {
	for i := len(rs) - 1; i >= 0; i-- {
		var sum commitSummary
		if err := json.Unmarshal([]byte(rs[i].Content), &sum); err == nil && sum.Total > 0 {
			return sum, true
		}
	}
	return commitSummary{}, false
}

func usable(r llm.OperationResult) bool {
	return r.Status == agent.StatusSuccess || r.Status == agent.StatusWarning
}

func lastPlan(rs []llm.OperationResult) *conversation.PlannerOutput {
	for i := len(rs) - 1; i >= 0; i-- {
		if !usable(rs[i]) {
			continue
		}
		if plan, err := conversation.DecodePlan(rs[i].Content); err == nil {
			return plan
		}
	}
	return nil
}

func lastSummary(rs []llm.OperationResult) *conversation.SummaryOutput {
	for i := len(rs) - 1; i >= 0; i-- {
		if !usable(rs[i]) {
			continue
		}
		if summary, err := conversation.DecodeSummary(rs[i].Content); err == nil {
			return summary
		}
	}
	return nil
}

// window returns at most limit trailing messages, starting at a user
// message so operation results are never separated from their request.
func window(msgs []llm.Message, limit int) []llm.Message {
	if limit <= 0 || len(msgs) <= limit {
		return msgs
	}
	tail := msgs[len(msgs)-limit:]
	for i, m := range tail {
		if m.Role == llm.RoleUser {
			return tail[i:]
		}
	}
	return msgs[len(msgs)-1:]
}
