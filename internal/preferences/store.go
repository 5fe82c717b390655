package preferences

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calendaragent/internal/logging"
)

// Store is the preference service used by the agents: it embeds text on
// write and ranks by similarity on read.
type Store struct {
	repo     Repository
	embedder Embedder
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore creates a Store. A nil embedder falls back to HashEmbedder.
func NewStore(repo Repository, embedder Embedder, logger *slog.Logger) *Store {
	if embedder == nil {
		embedder = NewHashEmbedder()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:     repo,
		embedder: embedder,
		logger:   logging.WithOperation(logger, "preferences"),
		now:      time.Now,
	}
}

// Put stores a preference, replacing the value of an existing key for the
// same user. It returns the stored preference and whether it was created.
func (s *Store) Put(ctx context.Context, userID, key, value, description string, weight float64) (Preference, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Preference{}, false, fmt.Errorf("preference key is required")
	}
	if weight == 0 {
		weight = 1.0
	}

	emb, err := s.embedder.Embed(ctx, embeddingText(key, value, description))
	if err != nil {
		// Similarity ranking degrades to weight order; the value is still kept.
		s.logger.Warn("embedding failed", logging.UserHash(userID), logging.Err(err))
	}

	now := s.now()
	p, created, err := s.repo.Upsert(ctx, Preference{
		ID:          uuid.NewString(),
		UserID:      userID,
		Key:         key,
		Description: description,
		Value:       value,
		Weight:      weight,
		Embedding:   emb,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Preference{}, false, err
	}
	s.logger.Info("preference stored", logging.UserHash(userID), slog.String("key", key), slog.Bool("created", created))
	return p, created, nil
}

// Retrieve returns preferences for userID. With q.Text the TopK most similar
// are returned, best first; with q.Key only that key; otherwise all.
func (s *Store) Retrieve(ctx context.Context, userID string, q Query) ([]Preference, error) {
	prefs, err := s.repo.List(ctx, userID, q.Key)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Text) == "" {
		return prefs, nil
	}

	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	qv, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	for i := range prefs {
		prefs[i].Similarity = math.Round(CosineSimilarity(qv, prefs[i].Embedding)*1e4) / 1e4
	}
	sortBySimilarity(prefs)
	if len(prefs) > topK {
		prefs = prefs[:topK]
	}
	return prefs, nil
}

// UpdateWeight changes a preference's weight and returns the previous one.
func (s *Store) UpdateWeight(ctx context.Context, id string, weight float64) (float64, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := s.repo.UpdateWeight(ctx, id, weight); err != nil {
		return 0, err
	}
	return p.Weight, nil
}

// Delete removes one preference.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Clear removes every preference of userID.
func (s *Store) Clear(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.Clear(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("preferences cleared", logging.UserHash(userID), slog.Int("count", n))
	return n, nil
}

// Summarize reports counts and weight statistics for userID.
func (s *Store) Summarize(ctx context.Context, userID string) (Summary, error) {
	prefs, err := s.repo.List(ctx, userID, "")
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Total: len(prefs), WeightDistribution: map[string]int{}}
	counts := map[string]int{}
	var total float64
	for _, p := range prefs {
		total += p.Weight
		lo := int(math.Floor(p.Weight))
		sum.WeightDistribution[fmt.Sprintf("%d-%d", lo, lo+1)]++
		counts[p.Key]++
	}
	if len(prefs) > 0 {
		sum.AverageWeight = math.Round(total/float64(len(prefs))*100) / 100
	}
	for k, c := range counts {
		sum.TopKeys = append(sum.TopKeys, KeyCount{Key: k, Count: c})
	}
	sort.Slice(sum.TopKeys, func(i, j int) bool {
		if sum.TopKeys[i].Count == sum.TopKeys[j].Count {
			return sum.TopKeys[i].Key < sum.TopKeys[j].Key
		}
		return sum.TopKeys[i].Count > sum.TopKeys[j].Count
	})
	if len(sum.TopKeys) > 5 {
		sum.TopKeys = sum.TopKeys[:5]
	}
	return sum, nil
}

func embeddingText(key, value, description string) string {
	parts := []string{key}
	if description != "" {
		parts = append(parts, description)
	}
	if value != "" {
		parts = append(parts, value)
	}
	return strings.Join(parts, " ")
}
