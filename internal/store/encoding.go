package store

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Shared codec instances; EncodeAll and DecodeAll are safe for concurrent use.
var (
	blobEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	blobDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
)

// EncodeHistory serializes a record as zstd-compressed JSON.
func EncodeHistory(rec HistoryRecord) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return blobEncoder.EncodeAll(raw, nil), nil
}

// DecodeHistory is the inverse of EncodeHistory.
func DecodeHistory(blob []byte) (HistoryRecord, error) {
	var rec HistoryRecord
	raw, err := blobDecoder.DecodeAll(blob, nil)
	if err != nil {
		return rec, fmt.Errorf("decompress history: %w", err)
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("unmarshal history: %w", err)
	}
	return rec, nil
}
