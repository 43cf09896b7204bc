package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const (
	// ProviderLocal is the deterministic in-process provider.
	ProviderLocal = "local"

	// LocalDimension is the deployment-wide embedding dimension for the
	// local provider. Catalog vectors and query vectors must agree on it.
	LocalDimension = 64

	localModel = "char-trigram-64"

	trigramSize = 3
)

// LocalProvider embeds text with the character-trigram hashing trick:
// each lowercase trigram is hashed into one of LocalDimension buckets,
// bucket counts form the vector, and the vector is L2-normalized. Fully
// deterministic, so identical text always yields an identical vector.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates the deterministic local embedder.
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{cache: cache}
}

// Embed generates the trigram-hash embedding for text.
func (l *LocalProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	hash := ComputeHash(text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    trigramVector(text),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     localModel,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}
	return emb, nil
}

// trigramVector hashes char trigrams of the lowercased text into a
// fixed-size count vector and L2-normalizes it. Text shorter than one
// trigram yields the zero vector, which scores zero cosine similarity
// against everything.
func trigramVector(text string) []float32 {
	vector := make([]float32, LocalDimension)

	runes := []rune(strings.ToLower(text))
	for i := 0; i+trigramSize <= len(runes); i++ {
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(runes[i : i+trigramSize])))
		vector[h.Sum32()%LocalDimension]++
	}

	var sum float64
	for _, v := range vector {
		sum += float64(v * v)
	}
	if sum == 0 {
		return vector
	}

	norm := float32(math.Sqrt(sum))
	for i := range vector {
		vector[i] /= norm
	}
	return vector
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return localModel
}

func (l *LocalProvider) Close() error {
	return nil
}
