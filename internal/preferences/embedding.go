package preferences

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"google.golang.org/genai"
)

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenAIEmbedder uses the Gemini embedding endpoint.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = "gemini-embedding-001"

// NewGenAIEmbedder wraps an existing client.
func NewGenAIEmbedder(client *genai.Client, model string) *GenAIEmbedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &GenAIEmbedder{client: client, model: model}
}

func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}

// HashEmbedder is an offline embedder: tokens (words, and single CJK
// characters plus their bigrams) are hashed into a fixed number of buckets.
// It ranks lexical overlap only.
type HashEmbedder struct {
	Dims int
}

// NewHashEmbedder returns a HashEmbedder with 256 buckets.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dims: 256}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dims := e.Dims
	if dims <= 0 {
		dims = 256
	}
	vec := make([]float32, dims)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(dims)]++
	}
	return vec, nil
}

func tokenize(text string) []string {
	var (
		tokens []string
		word   strings.Builder
		prev   rune
	)
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
			if prev != 0 {
				tokens = append(tokens, string([]rune{prev, r}))
			}
			prev = r
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
		prev = 0
	}
	flush()
	return tokens
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, am, bm float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		am += float64(a[i]) * float64(a[i])
		bm += float64(b[i]) * float64(b[i])
	}
	if am == 0 || bm == 0 {
		return 0
	}
	return dot / (math.Sqrt(am) * math.Sqrt(bm))
}
