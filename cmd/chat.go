package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/calendaragent/internal/conversation"
	"github.com/teemow/calendaragent/internal/orchestrator"
)

func newChatCmd() *cobra.Command {
	var (
		user      string
		showTrace bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the calendar assistant in the terminal",
		Long: `Start an interactive session with the calendar assistant. Each line is
routed to the scheduler, planner or summary agent. When a plan is proposed,
answer "yes" to commit it, describe a change to revise it, or "no" to drop it.

Commands:
  /reset   forget the conversation
  /state   print the conversation state as JSON
  /quit    exit

Requires an LLM API key (CALENDARAGENT_API_KEY or GEMINI_API_KEY).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := newApp(ctx, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			o, sessions, err := a.newOrchestrator()
			if err != nil {
				return err
			}
			defer sessions.Close()

			c := &chatSession{
				orchestrator: o,
				user:         resolveUser(user),
				showTrace:    showTrace || debugMode,
				in:           cmd.InOrStdin(),
				out:          cmd.OutOrStdout(),
			}
			return c.run(ctx)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Calendar owner. Can also use CALENDARAGENT_USER env var.")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Print the agent trace after each reply")
	return cmd
}

type chatSession struct {
	orchestrator *orchestrator.Orchestrator
	user         string
	showTrace    bool
	in           io.Reader
	out          io.Writer
}

const chatPrompt = "> "

func (c *chatSession) run(ctx context.Context) error {
	fmt.Fprintf(c.out, "Calendar assistant (user %s). Type /quit to exit.\n", c.user)

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, chatPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		quit, err := c.handle(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// handle processes one input line and reports whether the session ends.
func (c *chatSession) handle(ctx context.Context, line string) (bool, error) {
	switch strings.ToLower(line) {
	case "/quit", "/exit":
		return true, nil
	case "/reset":
		c.orchestrator.Reset(c.user)
		fmt.Fprintln(c.out, "Conversation cleared.")
		return false, nil
	case "/state":
		state, ok := c.orchestrator.State(c.user)
		if !ok {
			fmt.Fprintln(c.out, "No conversation yet.")
			return false, nil
		}
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, string(data))
		return false, nil
	}

	resp, err := c.orchestrator.Submit(ctx, c.user, line)
	if err != nil {
		return false, err
	}
	c.printResponse(resp)
	return false, nil
}

func (c *chatSession) printResponse(resp *orchestrator.Response) {
	fmt.Fprintln(c.out, resp.ResponseText)
	if resp.Status == orchestrator.StatusAwaitingConfirmation && resp.Plan != nil {
		printPlan(c.out, resp.Plan)
		fmt.Fprintln(c.out, "Commit this plan? (yes / describe a change / no)")
	}
	if c.showTrace {
		for _, line := range resp.Trace {
			fmt.Fprintf(c.out, "  | %s\n", line)
		}
	}
}

func printPlan(w io.Writer, plan *conversation.PlannerOutput) {
	for i, t := range plan.Tasks {
		when := "unscheduled"
		if t.Scheduled() {
			when = fmt.Sprintf("%s - %s", t.Start.Format("Mon 2006-01-02 15:04"), t.End.Format("15:04"))
		}
		fmt.Fprintf(w, "  %d. %s [%s] priority %d", i+1, t.Title, when, t.Priority)
		if len(t.Tags) > 0 {
			fmt.Fprintf(w, " #%s", strings.Join(t.Tags, " #"))
		}
		fmt.Fprintln(w)
	}
	for _, conflict := range plan.Conflicts {
		fmt.Fprintf(w, "  ! %s\n", conflict)
	}
	if plan.Notes != "" {
		fmt.Fprintf(w, "  %s\n", plan.Notes)
	}
}
