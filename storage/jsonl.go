package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	recordTypeUpdate  = "update"
	recordTypeOutcome = "packet_outcome"
)

var _ Sink = (*JsonlSink)(nil)

// JsonlSink appends records to a JSONL file, one envelope per line.
type JsonlSink struct {
	path string
	mu   sync.Mutex
}

type envelope struct {
	Type   string `json:"type"`
	Record any    `json:"record"`
}

func NewJsonlSink(path string) *JsonlSink {
	return &JsonlSink{path: path}
}

func (s *JsonlSink) PutUpdates(_ context.Context, updates []UpdateRecord) error {
	records := make([]envelope, len(updates))
	for i, u := range updates {
		records[i] = envelope{Type: recordTypeUpdate, Record: u}
	}
	return s.write(records)
}

func (s *JsonlSink) PutPacketOutcomes(_ context.Context, outcomes []OutcomeRecord) error {
	records := make([]envelope, len(outcomes))
	for i, o := range outcomes {
		records[i] = envelope{Type: recordTypeOutcome, Record: o}
	}
	return s.write(records)
}

func (s *JsonlSink) write(records []envelope) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal %s record: %w", record.Type, err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write %s record: %w", record.Type, err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
