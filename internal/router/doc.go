// Package router classifies user utterances into intents and picks the
// specialist agent that handles them.
//
// Classification asks the LLM for a JSON verdict and tolerates fenced or
// embedded JSON. When the reply cannot be parsed the router scores fixed
// English and Chinese keyword sets instead. A failing LLM call yields the
// error intent; Classify itself never fails.
package router
