package summary_tools

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calendaragent/internal/agent"
	"github.com/teemow/calendaragent/internal/calendar"
	"github.com/teemow/calendaragent/internal/conversation"
	"github.com/teemow/calendaragent/internal/server"
	"github.com/teemow/calendaragent/internal/timeutil"
	"github.com/teemow/calendaragent/internal/tools/common"
)

var dateOnly = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const rangeHint = "RFC3339, YYYY-MM-DD or a phrase like 'last week'. A date-only end includes that whole day."

// RegisterSummaryTools registers the analysis operations.
func RegisterSummaryTools(s agent.ToolAdder, sc *server.ServerContext) error {
	rangeOpts := func(description string) []mcp.ToolOption {
		return []mcp.ToolOption{
			mcp.WithDescription(description),
			mcp.WithString("start", mcp.Description("Range start: "+rangeHint)),
			mcp.WithString("end", mcp.Description("Range end: "+rangeHint)),
			mcp.WithString("period", mcp.Description("daily, weekly or monthly around now; used when start/end are omitted (default: weekly)")),
		}
	}

	s.AddTool(mcp.NewTool("get_events_summary", rangeOpts(
		"Aggregate statistics for a period: event count, tag counts, time-of-day distribution and average duration")...),
		common.InstrumentedToolHandler("get_events_summary", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleEventsSummary(ctx, request, sc)
			}))

	detailOpts := append(rangeOpts("List every event of a period with its details, ordered by start"),
		mcp.WithString("status", mcp.Description("confirmed (default), tentative, cancelled or 'all'")))
	s.AddTool(mcp.NewTool("get_events_detail", detailOpts...),
		common.InstrumentedToolHandler("get_events_detail", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleEventsDetail(ctx, request, sc)
			}))

	s.AddTool(mcp.NewTool("analyze_time_usage", rangeOpts(
		"Break down scheduled hours by activity with percentages and the top 3 activities")...),
		common.InstrumentedToolHandler("analyze_time_usage", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleAnalyzeTimeUsage(ctx, request, sc)
			}))

	recordSummaryTool := mcp.NewTool("record_summary",
		mcp.WithDescription("Record the final report for the user. Call once, after the analysis, before answering."),
		mcp.WithString("period",
			mcp.Required(),
			mcp.Description("Period covered, e.g. 'weekly' or '2025-01-13 to 2025-01-19'"),
		),
		mcp.WithString("summary_text",
			mcp.Required(),
			mcp.Description("The written summary"),
		),
		mcp.WithString("recommendations",
			mcp.Description("Recommendations, one per line or a JSON array of strings"),
		),
		mcp.WithString("stats",
			mcp.Description("Optional JSON object of key figures; computed from the calendar when omitted"),
		),
	)
	s.AddTool(recordSummaryTool, common.InstrumentedToolHandler("record_summary", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleRecordSummary(ctx, request, sc)
		}))

	return nil
}

// resolveRange reads start/end, falling back to the named period around now.
func resolveRange(args map[string]any, sc *server.ServerContext) (calendar.TimeRange, error) {
	now := sc.Now()
	period := common.String(args, "period")
	if period == "" {
		period = timeutil.PeriodWeekly
	}
	defStart, defEnd := timeutil.PeriodRange(now, period)
	r := calendar.TimeRange{Start: defStart, End: defEnd}

	start, ok, err := common.Time(args, "start", now)
	if err != nil {
		return r, err
	}
	if ok {
		r.Start = start
	}
	end, ok, err := common.Time(args, "end", now)
	if err != nil {
		return r, err
	}
	if ok {
		r.End = end
		if dateOnly.MatchString(common.String(args, "end")) {
			r.End = end.AddDate(0, 0, 1)
		}
	}
	if !r.End.After(r.Start) {
		return r, fmt.Errorf("end must be after start")
	}
	return r, nil
}

func rangePayload(r calendar.TimeRange) map[string]string {
	return map[string]string{
		"start": r.Start.Format(time.RFC3339),
		"end":   r.End.Format(time.RFC3339),
	}
}

func handleEventsSummary(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	r, err := resolveRange(args, sc)
	if err != nil {
		return common.Failure("%v", err), nil
	}

	summary, err := sc.Engine().Summary(ctx, userID, r)
	if err != nil {
		return common.FromError(err), nil
	}

	events, err := sc.Engine().List(ctx, userID, calendar.ListQuery{Range: r, Status: calendar.StatusConfirmed})
	if err != nil {
		return common.FromError(err), nil
	}

	byDate := map[string]int{}
	var totalMinutes float64
	for _, ev := range events {
		byDate[ev.Start.In(sc.Location()).Format("2006-01-02")]++
		totalMinutes += ev.Duration().Minutes()
	}
	busiest, busiestCount := "", 0
	for day, n := range byDate {
		if n > busiestCount || (n == busiestCount && day < busiest) {
			busiest, busiestCount = day, n
		}
	}

	payload := common.Payload{
		"range":             rangePayload(r),
		"period_days":       summary.PeriodDays,
		"total_events":      summary.TotalEvents,
		"events_by_tag":     summary.EventsByTag,
		"time_distribution": summary.TimeDistribution,
		"avg_duration":      summary.AvgDurationMinutes,
		"total_hours":       math.Round(totalMinutes/60*100) / 100,
		"events_by_date":    byDate,
	}
	if busiest != "" {
		payload["busiest_day"] = map[string]any{"date": busiest, "count": busiestCount}
	}
	if summary.TotalEvents == 0 {
		payload["message"] = "no events in this period"
	}
	return common.Success(payload), nil
}

type eventDetail struct {
	calendar.Event
	When     string `json:"when"`
	Duration string `json:"duration"`
}

func handleEventsDetail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	r, err := resolveRange(args, sc)
	if err != nil {
		return common.Failure("%v", err), nil
	}

	query := calendar.ListQuery{Range: r, Status: calendar.StatusConfirmed}
	switch raw := common.String(args, "status"); raw {
	case "":
	case "all":
		query.Status = ""
	default:
		status := calendar.EventStatus(raw)
		if !status.Valid() {
			return common.Failure("invalid status %q", raw), nil
		}
		query.Status = status
	}

	events, err := sc.Engine().List(ctx, userID, query)
	if err != nil {
		return common.FromError(err), nil
	}

	now := sc.Now()
	details := make([]eventDetail, 0, len(events))
	for _, ev := range events {
		details = append(details, eventDetail{
			Event:    ev,
			When:     timeutil.Humanize(now, ev.Start),
			Duration: timeutil.FormatDuration(int(ev.Duration().Minutes())),
		})
	}

	return common.Success(common.Payload{
		"range":  rangePayload(r),
		"count":  len(details),
		"events": details,
	}), nil
}

func handleAnalyzeTimeUsage(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	r, err := resolveRange(args, sc)
	if err != nil {
		return common.Failure("%v", err), nil
	}

	events, err := sc.Engine().List(ctx, userID, calendar.ListQuery{Range: r, Status: calendar.StatusConfirmed})
	if err != nil {
		return common.FromError(err), nil
	}

	usage := calendar.AnalyzeTimeUsage(events)
	if usage.ByTitle == nil {
		usage.ByTitle = []calendar.TitleUsage{}
		usage.Top = []calendar.TitleUsage{}
	}
	payload := common.Payload{
		"range":          rangePayload(r),
		"total_hours":    usage.TotalHours,
		"time_breakdown": usage.ByTitle,
		"top_activities": usage.Top,
	}
	if len(events) == 0 {
		payload["message"] = "no events in this period"
	}
	return common.Success(payload), nil
}

func handleRecordSummary(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	userID := common.UserFromArgs(ctx, args)

	period, err := common.RequiredString(args, "period")
	if err != nil {
		return common.Failure("%v", err), nil
	}
	text, err := common.RequiredString(args, "summary_text")
	if err != nil {
		return common.Failure("%v", err), nil
	}

	out := conversation.SummaryOutput{
		Period:          period,
		SummaryText:     text,
		Recommendations: common.Lines(args, "recommendations"),
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}

	var stats map[string]any
	ok, err := common.Decode(args, "stats", &stats)
	if err != nil {
		return common.Failure("%v", err), nil
	}
	if !ok {
		start, end := timeutil.PeriodRange(sc.Now(), period)
		summary, err := sc.Engine().Summary(ctx, userID, calendar.TimeRange{Start: start, End: end})
		if err != nil {
			return common.FromError(err), nil
		}
		stats = map[string]any{
			"total_events":      summary.TotalEvents,
			"events_by_tag":     summary.EventsByTag,
			"time_distribution": summary.TimeDistribution,
			"avg_duration":      summary.AvgDurationMinutes,
			"period_days":       summary.PeriodDays,
		}
	}
	out.Stats = stats

	return common.Success(common.Payload{
		"summary": out,
		"message": fmt.Sprintf("summary recorded with %d recommendation(s)", out.RecommendationCount()),
	}), nil
}
