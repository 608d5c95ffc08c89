package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"unicode"
)

// HashClient is an offline embedding client. Each token is hashed into a signed
// bucket so texts sharing words land close to each other under cosine distance.
type HashClient struct {
	dimension int
}

func NewHashClient(dimension int) *HashClient {
	return &HashClient{dimension: dimension}
}

// CreateEmbedding satisfies embeddings.EmbedderClient.
func (h *HashClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, h.vector(text))
	}
	return out, nil
}

func (h *HashClient) vector(text string) []float32 {
	vec := make([]float32, h.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		tokens = []string{text}
	}
	for _, token := range tokens {
		sum := sha256.Sum256([]byte(token))
		idx := binary.BigEndian.Uint64(sum[:8]) % uint64(h.dimension)
		if sum[8]&1 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
