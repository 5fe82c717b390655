// Package preferences stores per-user preferences and retrieves them by
// exact key or by similarity to free text.
//
// Writes embed "key description value" through an Embedder (Gemini when an
// API key is configured, otherwise a hashing bag-of-words). Reads score
// candidates with cosine similarity in process.
package preferences
