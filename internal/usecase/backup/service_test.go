package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eslsoft/vocsync/internal/entity"
)

type memoryStore struct {
	mu      sync.Mutex
	data    entity.LocalData
	history []entity.HistoryEntry
}

func (m *memoryStore) GetAllLocalData(context.Context) (*entity.LocalData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := entity.LocalData{WordBooks: append([]entity.WordBook(nil), m.data.WordBooks...)}
	return &out, nil
}

func (m *memoryStore) SaveAllLocalData(_ context.Context, data *entity.LocalData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = entity.LocalData{WordBooks: append([]entity.WordBook(nil), data.WordBooks...)}
	return nil
}

func (m *memoryStore) GetHistoryEntries(context.Context) ([]entity.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.HistoryEntry(nil), m.history...), nil
}

func (m *memoryStore) SaveBookRemoteIDs(context.Context, map[string]string) error { return nil }

func (m *memoryStore) AddHistoryEntry(_ context.Context, entry entity.HistoryEntry) (entity.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, entry)
	return entry, nil
}

type recordingProgress struct {
	started  map[string]int
	counts   map[string]int
	finished []string
}

func newRecordingProgress() *recordingProgress {
	return &recordingProgress{started: map[string]int{}, counts: map[string]int{}}
}

func (p *recordingProgress) StartTable(table string, total int) { p.started[table] = total }
func (p *recordingProgress) Increment(table string, delta int)  { p.counts[table] += delta }
func (p *recordingProgress) FinishTable(table string)           { p.finished = append(p.finished, table) }

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func seededStore() *memoryStore {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return &memoryStore{
		data: entity.LocalData{WordBooks: []entity.WordBook{
			{
				ID: "lb-1", RemoteID: "rb-1", Name: "Spanish Basics", TargetLanguage: entity.LanguageSpanish, CreatedAt: created,
				Words: []entity.WordCard{
					{ID: "lc-1", Word: "hablar", LearningStatus: entity.LearningStatusLearned, CreatedAt: created,
						AIGeneratedInfo: json.RawMessage(`{"translations":["to speak"]}`)},
				},
			},
			{ID: "lb-2", Name: "Empty", TargetLanguage: entity.LanguageFrench, CreatedAt: created, Words: []entity.WordCard{}},
		}},
		history: []entity.HistoryEntry{
			{ID: "h-1", WordCardID: "lc-1", PracticeType: "conjugation", Tense: "present", CorrectAnswer: "hablo", UserAnswer: "hablo", IsCorrect: true, CreatedAt: created},
		},
	}
}

func TestServiceExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seededStore()
	progress := newRecordingProgress()

	var buf bytes.Buffer
	require.NoError(t, NewService(src, WithClock(func() time.Time { return fixedNow })).Export(ctx, &buf, WithProgressReporter(progress)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"type":"meta"`)
	assert.Contains(t, lines[0], `"exported_at":"2025-03-01T09:00:00Z"`)
	assert.Equal(t, map[string]int{SectionWordBooks: 2, SectionHistory: 1}, progress.counts)
	assert.Equal(t, []string{SectionWordBooks, SectionHistory}, progress.finished)

	dst := &memoryStore{}
	stats, err := NewService(dst).Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, ImportStats{
		WordBooks:        2,
		WordCards:        1,
		History:          1,
		SectionsRestored: []string{SectionWordBooks, SectionHistory},
	}, stats)
	require.Len(t, dst.data.WordBooks, 2)
	assert.Equal(t, "rb-1", dst.data.WordBooks[0].RemoteID)
	assert.JSONEq(t, `{"translations":["to speak"]}`, string(dst.data.WordBooks[0].Words[0].AIGeneratedInfo))
	assert.True(t, src.history[0].CreatedAt.Equal(dst.history[0].CreatedAt))

	// Importing again skips known history entries.
	stats, err = NewService(dst).Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Zero(t, stats.History)
	assert.Equal(t, 1, stats.HistorySkipped)
	assert.Len(t, dst.history, 1)
}

func TestServiceExportSectionsFilter(t *testing.T) {
	var buf bytes.Buffer
	err := NewService(seededStore()).Export(context.Background(), &buf, WithSections([]string{SectionHistory}))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"type":"practice_history"`)
	assert.NotContains(t, out, `"type":"word_books"`)
}

func TestServiceImportSectionsFilter(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	require.NoError(t, NewService(seededStore()).Export(ctx, &buf))

	dst := &memoryStore{}
	stats, err := NewService(dst).Import(ctx, &buf, WithImportSections([]string{SectionWordBooks}))
	require.NoError(t, err)

	assert.Equal(t, []string{SectionWordBooks}, stats.SectionsRestored)
	assert.Len(t, dst.data.WordBooks, 2)
	assert.Empty(t, dst.history)
}

func TestServiceImportErrors(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"missing meta":    `{"type":"word_books","payload":{"id":"b","name":"n"}}` + "\n",
		"bad version":     `{"type":"meta","version":9}` + "\n",
		"bad json":        "{nope\n",
		"missing payload": `{"type":"meta","version":1,"sections":["word_books"]}` + "\n" + `{"type":"word_books"}` + "\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewService(&memoryStore{}).Import(ctx, strings.NewReader(input))
			assert.Error(t, err)
		})
	}

	_, err := NewService(&memoryStore{}).Import(ctx, strings.NewReader(""), WithImportSections([]string{"users"}))
	assert.ErrorContains(t, err, `unknown section "users"`)
}
