package indexworker

import (
	"encoding/json"
	"fmt"

	"github.com/kapral18/semantic-code-search-indexer/pkg/chunk"
)

// EncodeChunk serializes c for storage in the durable queue.
func EncodeChunk(c chunk.Chunk) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode chunk: %w", err)
	}

	return data, nil
}

func decodeChunk(document []byte, out *chunk.Chunk) error {
	if err := json.Unmarshal(document, out); err != nil {
		return fmt.Errorf("decode chunk: %w", err)
	}

	return nil
}
