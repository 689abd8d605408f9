package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sugawarayuuta/sonnet"

	"clmmScope/internal/model"
)

// JsonlStorage appends results and errors to two JSONL files. An empty errors path drops errors.
type JsonlStorage struct {
	path       string
	errorsPath string
	mu         sync.Mutex
}

func NewJsonlStorage(path, errorsPath string) *JsonlStorage {
	return &JsonlStorage{path: path, errorsPath: errorsPath}
}

// PutResultBatch appends a batch of results as JSON lines.
func (s *JsonlStorage) PutResultBatch(_ context.Context, results []model.OperationResult) error {
	if len(results) == 0 {
		return nil
	}
	lines := make([]any, len(results))
	for i := range results {
		lines[i] = results[i]
	}
	return s.appendLines(s.path, lines)
}

// PutErrorBatch appends a batch of rejected operations as JSON lines.
func (s *JsonlStorage) PutErrorBatch(_ context.Context, failures []model.OperationError) error {
	if len(failures) == 0 || s.errorsPath == "" {
		return nil
	}
	lines := make([]any, len(failures))
	for i := range failures {
		lines[i] = failures[i]
	}
	return s.appendLines(s.errorsPath, lines)
}

func (s *JsonlStorage) appendLines(path string, records []any) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := sonnet.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
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
