package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Gemini implements Client on the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiClient creates a genai client for the Gemini API backend.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// NewGemini wraps client. An empty model selects DefaultModel.
func NewGemini(client *genai.Client, model string, temperature float32) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{client: client, model: model, temperature: temperature}
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.model
}

// Invoke sends history with ops declared as functions. Function calls in
// the response become OperationRequests; otherwise the text is a FinalAnswer.
func (g *Gemini) Invoke(ctx context.Context, instruction string, history []Message, ops []Operation) (ReasonOutput, error) {
	config := g.config(instruction)
	if len(ops) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: functionDeclarations(ops)}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, toContents(history), config)
	if err != nil {
		return nil, classify(err)
	}

	if calls := resp.FunctionCalls(); len(calls) > 0 {
		reqs := make([]OperationRequest, 0, len(calls))
		for _, call := range calls {
			id := call.ID
			if id == "" {
				id = uuid.NewString()
			}
			reqs = append(reqs, OperationRequest{ID: id, Name: call.Name, Arguments: call.Args})
		}
		return OperationRequests{Thought: strings.TrimSpace(resp.Text()), Requests: reqs}, nil
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return FinalAnswer{Text: text}, nil
}

// Complete returns the text response to a single prompt.
func (g *Gemini) Complete(ctx context.Context, instruction, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, g.config(instruction))
	if err != nil {
		return "", classify(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *Gemini) config(instruction string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if instruction != "" {
		config.SystemInstruction = genai.NewContentFromText(instruction, genai.RoleUser)
	}
	return config
}

func functionDeclarations(ops []Operation) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(ops))
	for _, op := range ops {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 op.Name,
			Description:          op.Description,
			ParametersJsonSchema: op.Parameters,
		})
	}
	return decls
}

// toContents maps history onto genai contents. Consecutive operation results
// are grouped into one user turn, matching the function-call turn before it.
func toContents(history []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	var pending []*genai.Part

	flush := func() {
		if len(pending) > 0 {
			contents = append(contents, genai.NewContentFromParts(pending, genai.RoleUser))
			pending = nil
		}
	}

	for _, m := range history {
		switch m.Role {
		case RoleOperation:
			if m.Result != nil {
				pending = append(pending, genai.NewPartFromFunctionResponse(m.Result.Name, m.Result.Response()))
			}
		case RoleAssistant:
			flush()
			parts := make([]*genai.Part, 0, len(m.Requests)+1)
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, req := range m.Requests {
				parts = append(parts, genai.NewPartFromFunctionCall(req.Name, req.Arguments))
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		default:
			flush()
			if m.Content != "" {
				contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
			}
		}
	}
	flush()
	return contents
}
