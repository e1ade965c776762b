package backup

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/samber/lo"

	"github.com/eslsoft/vocsync/internal/entity"
	"github.com/eslsoft/vocsync/internal/repository"
)

const formatVersion = 1

// Section names used in backup records.
const (
	SectionWordBooks = "word_books"
	SectionHistory   = "practice_history"
)

var allSections = []string{SectionWordBooks, SectionHistory}

type ProgressReporter interface {
	StartTable(table string, total int)
	Increment(table string, delta int)
	FinishTable(table string)
}

type noopProgress struct{}

func (noopProgress) StartTable(string, int) {}
func (noopProgress) Increment(string, int)  {}
func (noopProgress) FinishTable(string)     {}

// Store is the local store plus the history writer restore needs.
type Store interface {
	repository.LocalStore
	AddHistoryEntry(ctx context.Context, entry entity.HistoryEntry) (entity.HistoryEntry, error)
}

// Service dumps and restores the local dataset as NDJSON: one meta record,
// then one record per word book and per practice history entry.
type Service struct {
	store Store
	now   func() time.Time
}

type Option func(*Service)

// WithClock overrides the export timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a backup service bound to the local store.
func NewService(store Store, opts ...Option) *Service {
	svc := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type exportConfig struct {
	sections []string
	reporter ProgressReporter
}

type ExportOption func(*exportConfig)

// WithSections restricts export to the named sections.
func WithSections(sections []string) ExportOption {
	return func(cfg *exportConfig) {
		if len(sections) == 0 {
			return
		}
		cfg.sections = append([]string{}, sections...)
	}
}

// WithProgressReporter registers a reporter that receives progress callbacks during export.
func WithProgressReporter(reporter ProgressReporter) ExportOption {
	return func(cfg *exportConfig) {
		cfg.reporter = reporter
	}
}

type importConfig struct {
	sections []string
}

type ImportOption func(*importConfig)

// WithImportSections restricts import to the named sections.
func WithImportSections(sections []string) ImportOption {
	return func(cfg *importConfig) {
		if len(sections) == 0 {
			return
		}
		cfg.sections = append([]string{}, sections...)
	}
}

// ImportStats counts what a restore wrote.
type ImportStats struct {
	WordBooks        int
	WordCards        int
	History          int
	HistorySkipped   int
	SectionsRestored []string
}

type record struct {
	Type       string         `json:"type"`
	Version    int            `json:"version,omitempty"`
	ExportedAt *time.Time     `json:"exported_at,omitempty"`
	Sections   []string       `json:"sections,omitempty"`
	RowCounts  map[string]int `json:"row_counts,omitempty"`
	Payload    any            `json:"payload,omitempty"`
}

type rawRecord struct {
	Type      string          `json:"type"`
	Version   int             `json:"version"`
	Sections  []string        `json:"sections"`
	RowCounts map[string]int  `json:"row_counts"`
	Payload   json.RawMessage `json:"payload"`
}

func (s *Service) Export(ctx context.Context, w io.Writer, opts ...ExportOption) error {
	cfg := exportConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	sections, err := selectSections(cfg.sections)
	if err != nil {
		return err
	}
	reporter := cfg.reporter
	if reporter == nil {
		reporter = noopProgress{}
	}

	var (
		books   []entity.WordBook
		history []entity.HistoryEntry
	)
	counts := make(map[string]int, len(sections))
	if lo.Contains(sections, SectionWordBooks) {
		data, err := s.store.GetAllLocalData(ctx)
		if err != nil {
			return fmt.Errorf("load local data: %w", err)
		}
		books = data.WordBooks
		counts[SectionWordBooks] = len(books)
	}
	if lo.Contains(sections, SectionHistory) {
		history, err = s.store.GetHistoryEntries(ctx)
		if err != nil {
			return fmt.Errorf("load practice history: %w", err)
		}
		counts[SectionHistory] = len(history)
	}

	writer := bufio.NewWriter(w)
	defer writer.Flush()

	now := s.now().UTC()
	meta := record{
		Type:       "meta",
		Version:    formatVersion,
		ExportedAt: &now,
		Sections:   sections,
		RowCounts:  counts,
	}
	if err := writeRecord(writer, meta); err != nil {
		return err
	}

	if lo.Contains(sections, SectionWordBooks) {
		if err := writeSection(writer, reporter, SectionWordBooks, books); err != nil {
			return err
		}
	}
	if lo.Contains(sections, SectionHistory) {
		if err := writeSection(writer, reporter, SectionHistory, history); err != nil {
			return err
		}
	}
	return writer.Flush()
}

func writeSection[T any](w io.Writer, reporter ProgressReporter, section string, rows []T) error {
	reporter.StartTable(section, len(rows))
	for _, row := range rows {
		if err := writeRecord(w, record{Type: section, Payload: row}); err != nil {
			return err
		}
		reporter.Increment(section, 1)
	}
	reporter.FinishTable(section)
	return nil
}

// Import restores a backup. Word books replace the local dataset; practice
// history is appended, skipping entries whose ID already exists.
func (s *Service) Import(ctx context.Context, r io.Reader, opts ...ImportOption) (ImportStats, error) {
	cfg := importConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	var stats ImportStats
	sections, err := selectSections(cfg.sections)
	if err != nil {
		return stats, err
	}

	br := bufio.NewReader(r)
	var (
		metaSeen bool
		meta     rawRecord
		books    []entity.WordBook
		history  []entity.HistoryEntry
	)
	for {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return stats, fmt.Errorf("read backup: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var rec rawRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return stats, fmt.Errorf("decode record: %w", err)
			}
			switch {
			case rec.Type == "meta":
				metaSeen = true
				meta = rec
			case !lo.Contains(sections, rec.Type):
				// Skip records for sections not requested.
			case len(rec.Payload) == 0:
				return stats, fmt.Errorf("backup: missing payload for %s", rec.Type)
			case rec.Type == SectionWordBooks:
				var b entity.WordBook
				if err := json.Unmarshal(rec.Payload, &b); err != nil {
					return stats, fmt.Errorf("decode word book: %w", err)
				}
				books = append(books, b)
			case rec.Type == SectionHistory:
				var h entity.HistoryEntry
				if err := json.Unmarshal(rec.Payload, &h); err != nil {
					return stats, fmt.Errorf("decode practice history: %w", err)
				}
				history = append(history, h)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	if !metaSeen {
		return stats, errors.New("backup: missing meta record")
	}
	if meta.Version != formatVersion {
		return stats, fmt.Errorf("backup: unsupported format version %d", meta.Version)
	}

	if lo.Contains(sections, SectionWordBooks) && lo.Contains(meta.Sections, SectionWordBooks) {
		data := &entity.LocalData{WordBooks: books}
		if err := s.store.SaveAllLocalData(ctx, data); err != nil {
			return stats, fmt.Errorf("restore word books: %w", err)
		}
		stats.WordBooks = len(books)
		stats.WordCards = data.CardCount()
		stats.SectionsRestored = append(stats.SectionsRestored, SectionWordBooks)
	}

	if lo.Contains(sections, SectionHistory) && lo.Contains(meta.Sections, SectionHistory) {
		existing, err := s.store.GetHistoryEntries(ctx)
		if err != nil {
			return stats, fmt.Errorf("load practice history: %w", err)
		}
		known := lo.SliceToMap(existing, func(h entity.HistoryEntry) (string, struct{}) { return h.ID, struct{}{} })
		for _, h := range history {
			if _, dup := known[h.ID]; dup && h.ID != "" {
				stats.HistorySkipped++
				continue
			}
			if _, err := s.store.AddHistoryEntry(ctx, h); err != nil {
				return stats, fmt.Errorf("restore practice history %s: %w", h.ID, err)
			}
			stats.History++
		}
		stats.SectionsRestored = append(stats.SectionsRestored, SectionHistory)
	}
	return stats, nil
}

func selectSections(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return append([]string{}, allSections...), nil
	}
	var out []string
	for _, name := range lo.Uniq(requested) {
		if !lo.Contains(allSections, name) {
			return nil, fmt.Errorf("backup: unknown section %q", name)
		}
		out = append(out, name)
	}
	return out, nil
}

func writeRecord(w io.Writer, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
