// Package llm is the boundary to the language model.
//
// A Reasoner runs one step of an agent loop and returns a ReasonOutput,
// either a FinalAnswer or OperationRequests. A Completer returns plain text
// and backs the intent router. Gemini implements both on
// google.golang.org/genai.
//
// Wrappers compose in this order:
//
//	var c llm.Client = llm.NewGemini(client, model, 0.2)
//	c = llm.WithInstrumentation(c, model, metrics)
//	c = llm.WithPacing(c, 500*time.Millisecond)
//	c = llm.WithRetry(c, llm.DefaultRetryPolicy(), metrics, logger)
//
// Retries happen only for ErrRateLimited. All provider failures wrap
// ErrUpstream.
package llm
