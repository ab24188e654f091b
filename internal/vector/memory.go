package vector

import (
	"context"
	"sort"
	"sync"

	"paperlens/internal/models"
)

// MemoryIndex keeps every paper's chunks in process memory. Nothing is ever
// evicted and everything is lost on restart, so it is meant for tests and
// local runs only.
type MemoryIndex struct {
	mu     sync.RWMutex
	papers map[string][]models.Chunk
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{papers: make(map[string][]models.Chunk)}
}

func (m *MemoryIndex) Upsert(_ context.Context, paperID string, chunks []models.Chunk) error {
	stored := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		c.PaperID = paperID
		c.Embedding = append([]float32(nil), c.Embedding...)
		stored[i] = c
	}
	m.mu.Lock()
	m.papers[paperID] = stored
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, paperID string, query []float32, topK int) ([]models.ChunkMatch, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	m.mu.RLock()
	chunks := m.papers[paperID]
	out := make([]models.ChunkMatch, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, models.ChunkMatch{
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Score:      CosineSimilarity(query, c.Embedding),
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Len reports how many chunks are stored for paperID.
func (m *MemoryIndex) Len(paperID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.papers[paperID])
}
