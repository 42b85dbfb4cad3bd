package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// chunkRecord is one embedded text chunk persisted in the group's
// working directory, one JSON object per line.
type chunkRecord struct {
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

const vectorStoreFile = "vectors.jsonl"

// vectorStore holds a group's chunk index in memory and appends new
// records to the backing file. Not safe for concurrent use; the owning
// engine serializes access.
type vectorStore struct {
	path    string
	records []chunkRecord
}

func openVectorStore(workingDir string) (*vectorStore, error) {
	s := &vectorStore{path: filepath.Join(workingDir, vectorStoreFile)}

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open vector store failed: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec chunkRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decode vector store record failed: %w", err)
		}
		s.records = append(s.records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vector store failed: %w", err)
	}
	return s, nil
}

func (s *vectorStore) append(records []chunkRecord) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open vector store for append failed: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode vector store record failed: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush vector store failed: %w", err)
	}

	s.records = append(s.records, records...)
	return nil
}

func (s *vectorStore) len() int {
	return len(s.records)
}

// topK returns the k records most similar to the query embedding,
// highest score first.
func (s *vectorStore) topK(query []float32, k int) []chunkRecord {
	if k <= 0 || len(s.records) == 0 {
		return nil
	}

	type scored struct {
		rec   chunkRecord
		score float32
	}
	ranked := make([]scored, len(s.records))
	for i := range s.records {
		ranked[i] = scored{rec: s.records[i], score: cosineSimilarity(query, s.records[i].Embedding)}
	}
	for i := 0; i < len(ranked); i++ {
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].score > ranked[i].score {
				ranked[i], ranked[j] = ranked[j], ranked[i]
			}
		}
	}
	if k > len(ranked) {
		k = len(ranked)
	}

	out := make([]chunkRecord, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].rec
	}
	return out
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
