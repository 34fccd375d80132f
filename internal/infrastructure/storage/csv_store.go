package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"IntelRadar/internal/domain"
	"IntelRadar/internal/ports"
)

// utf8BOM keeps spreadsheet applications reading the file as UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Header is the fixed first row of the CSV store.
var Header = []string{"抓取日期", "來源網址", "文章標題", "核心技術聚類", "目標受眾層級", "產業趨勢"}

// CSVStore is an append-only tabular file. It never rewrites existing rows
// and does not enforce key uniqueness.
type CSVStore struct {
	path string
}

var _ ports.RecordStore = (*CSVStore)(nil)

// NewCSVStore points the store at path; nothing is touched until Init.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Init creates the file with its header row if it does not exist.
func (s *CSVStore) Init(ctx context.Context) error {
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create store %s: %w", s.path, err)
	}

	if _, err := file.Write(utf8BOM); err != nil {
		_ = file.Close()
		return fmt.Errorf("write bom: %w", err)
	}
	w := csv.NewWriter(file)
	if err := w.Write(Header); err != nil {
		_ = file.Close()
		return fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush header: %w", err)
	}
	return file.Close()
}

// Keys scans every data row and returns its URL/title pair.
// Rows too short to carry both keys are skipped.
func (s *CSVStore) Keys(ctx context.Context) ([]domain.RecordKey, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", s.path, err)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var keys []domain.RecordKey
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read store %s: %w", s.path, err)
		}
		if first {
			first = false
			if isHeader(row) {
				continue
			}
		}
		if len(row) < 3 {
			continue
		}
		keys = append(keys, domain.RecordKey{URL: row[1], Title: row[2]})
	}
	return keys, nil
}

// Append opens the file, writes one row, and closes it again.
func (s *CSVStore) Append(ctx context.Context, record domain.IntelligenceRecord) error {
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open store for append: %w", err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(toRow(record)); err != nil {
		_ = file.Close()
		return fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush record: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync store: %w", err)
	}
	return file.Close()
}

func toRow(r domain.IntelligenceRecord) []string {
	return []string{
		r.CapturedAt.Format(domain.CapturedAtLayout),
		r.SourceURL,
		r.ArticleTitle,
		r.TechCluster,
		r.TargetAudience,
		r.IndustryTrend,
	}
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.TrimSpace(row[0]) == Header[0]
}
