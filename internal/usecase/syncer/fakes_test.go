package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/eslsoft/vocsync/internal/entity"
	"github.com/eslsoft/vocsync/internal/repository"
)

const testOwner = "user-1"

var errBoom = errors.New("boom")

type fakeLocal struct {
	mu      sync.Mutex
	data    entity.LocalData
	history []entity.HistoryEntry
	loadErr error
	saves   int
}

func newFakeLocal(books ...entity.WordBook) *fakeLocal {
	return &fakeLocal{data: entity.LocalData{WordBooks: books}}
}

func (l *fakeLocal) GetAllLocalData(ctx context.Context) (*entity.LocalData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loadErr != nil {
		return nil, l.loadErr
	}
	return cloneData(&l.data), nil
}

func (l *fakeLocal) SaveAllLocalData(ctx context.Context, data *entity.LocalData) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data = *cloneData(data)
	l.saves++
	return nil
}

func (l *fakeLocal) GetHistoryEntries(ctx context.Context) ([]entity.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]entity.HistoryEntry(nil), l.history...), nil
}

func (l *fakeLocal) SaveBookRemoteIDs(ctx context.Context, remoteIDs map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.data.WordBooks {
		if id, ok := remoteIDs[l.data.WordBooks[i].ID]; ok {
			l.data.WordBooks[i].RemoteID = id
		}
	}
	return nil
}

func (l *fakeLocal) renameBook(localID, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.data.WordBooks {
		if l.data.WordBooks[i].ID == localID {
			l.data.WordBooks[i].Name = name
		}
	}
}

func (l *fakeLocal) snapshot() entity.LocalData {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *cloneData(&l.data)
}

func cloneData(in *entity.LocalData) *entity.LocalData {
	out := &entity.LocalData{WordBooks: make([]entity.WordBook, len(in.WordBooks))}
	for i, b := range in.WordBooks {
		b.Words = append([]entity.WordCard(nil), b.Words...)
		out.WordBooks[i] = b
	}
	return out
}

type fakeBook struct {
	owner string
	row   repository.RemoteBook
}

type fakeCard struct {
	owner string
	row   repository.RemoteCard
}

type fakeHistory struct {
	owner string
	id    string
	row   repository.HistoryRow
}

type remoteCalls struct {
	selectBooks   int
	insertBooks   int
	updateBooks   int
	selectCards   int
	insertCards   int
	updateCards   int
	upserts       int
	historyLookup int
	historyInsert int
}

// fakeRemote is an in-memory relational store with failure injection.
type fakeRemote struct {
	mu        sync.Mutex
	seq       int
	books     []*fakeBook
	cards     []*fakeCard
	relations map[relationPair]repository.RelationRow
	history   []fakeHistory
	calls     remoteCalls

	historyTable bool
	capsErr      error

	failSelectCards func(words []string) error
	failInsertCard  map[string]error
	failUpdateBook  map[string]error
	failUpsert      error

	// onSelectBooks runs (outside the lock) before every book lookup.
	onSelectBooks func()
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		relations:      make(map[relationPair]repository.RelationRow),
		historyTable:   true,
		failInsertCard: make(map[string]error),
		failUpdateBook: make(map[string]error),
	}
}

func (r *fakeRemote) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *fakeRemote) SelectBooksByName(ctx context.Context, owner string, names []string) ([]repository.RemoteBook, error) {
	if r.onSelectBooks != nil {
		r.onSelectBooks()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.selectBooks++
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []repository.RemoteBook
	for _, b := range r.books {
		if b.owner == owner && want[b.row.Name] {
			out = append(out, b.row)
		}
	}
	return out, nil
}

func (r *fakeRemote) SelectBooksByID(ctx context.Context, owner string, ids []string) ([]repository.RemoteBook, error) {
	if r.onSelectBooks != nil {
		r.onSelectBooks()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.selectBooks++
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []repository.RemoteBook
	for _, b := range r.books {
		if b.owner == owner && want[b.row.ID] {
			out = append(out, b.row)
		}
	}
	return out, nil
}

func (r *fakeRemote) BatchInsertBooks(ctx context.Context, owner string, rows []repository.BookRow) ([]repository.RemoteBook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.insertBooks++
	out := make([]repository.RemoteBook, 0, len(rows))
	for _, row := range rows {
		b := repository.RemoteBook{
			ID:             r.nextID("book"),
			Name:           row.Name,
			TargetLanguage: row.TargetLanguage,
			CreatedAt:      row.CreatedAt,
		}
		r.books = append(r.books, &fakeBook{owner: owner, row: b})
		out = append(out, b)
	}
	return out, nil
}

func (r *fakeRemote) UpdateBook(ctx context.Context, owner, id string, fields repository.BookFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.updateBooks++
	if err := r.failUpdateBook[fields.Name]; err != nil {
		return err
	}
	for _, b := range r.books {
		if b.owner == owner && b.row.ID == id {
			b.row.Name = fields.Name
			b.row.TargetLanguage = fields.TargetLanguage
			return nil
		}
	}
	return entity.ErrWordBookNotFound
}

func (r *fakeRemote) SelectCardsByWord(ctx context.Context, owner string, words []string) ([]repository.RemoteCard, error) {
	if r.failSelectCards != nil {
		if err := r.failSelectCards(words); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.selectCards++
	want := make(map[string]bool, len(words))
	for _, w := range words {
		want[entity.NormalizeWordToken(w)] = true
	}
	var out []repository.RemoteCard
	for _, c := range r.cards {
		if c.owner == owner && want[entity.NormalizeWordToken(c.row.Word)] {
			out = append(out, c.row)
		}
	}
	return out, nil
}

func (r *fakeRemote) InsertCard(ctx context.Context, owner string, row repository.CardRow) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.insertCards++
	if err := r.failInsertCard[entity.NormalizeWordToken(row.Word)]; err != nil {
		return "", err
	}
	for _, c := range r.cards {
		if c.owner == owner && strings.EqualFold(c.row.Word, row.Word) {
			return "", fmt.Errorf("duplicate word card %q", row.Word)
		}
	}
	c := repository.RemoteCard{
		ID:              r.nextID("card"),
		Word:            row.Word,
		AIGeneratedInfo: row.AIGeneratedInfo,
		CreatedAt:       row.CreatedAt,
	}
	r.cards = append(r.cards, &fakeCard{owner: owner, row: c})
	return c.ID, nil
}

func (r *fakeRemote) UpdateCard(ctx context.Context, owner, id string, fields repository.CardFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.updateCards++
	for _, c := range r.cards {
		if c.owner == owner && c.row.ID == id {
			if fields.AIGeneratedInfo != nil {
				c.row.AIGeneratedInfo = fields.AIGeneratedInfo
			}
			return nil
		}
	}
	return entity.ErrWordCardNotFound
}

func (r *fakeRemote) UpsertRelations(ctx context.Context, owner string, rows []repository.RelationRow, conflictKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.upserts++
	if r.failUpsert != nil {
		return r.failUpsert
	}
	if conflictKey != repository.RelationConflictKey {
		return fmt.Errorf("unexpected conflict key %q", conflictKey)
	}
	seen := make(map[relationPair]bool, len(rows))
	for _, row := range rows {
		k := relationPair{book: row.WordBookID, card: row.WordCardID}
		if seen[k] {
			return errors.New("ON CONFLICT DO UPDATE command cannot affect row a second time")
		}
		seen[k] = true
		r.relations[k] = row
	}
	return nil
}

func (r *fakeRemote) TableExists(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return name == repository.HistoryTable && r.historyTable, nil
}

func (r *fakeRemote) Capabilities(ctx context.Context) (repository.Capabilities, error) {
	if r.capsErr != nil {
		return repository.Capabilities{}, r.capsErr
	}
	ok, err := r.TableExists(ctx, repository.HistoryTable)
	return repository.Capabilities{History: ok}, err
}

func (r *fakeRemote) SelectHistoryByNaturalKey(ctx context.Context, owner string, key repository.HistoryKey) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.historyLookup++
	for _, h := range r.history {
		k := h.row.HistoryKey
		if h.owner == owner && k.WordCardID == key.WordCardID && k.PracticeType == key.PracticeType &&
			k.Tense == key.Tense && k.Mood == key.Mood && k.Person == key.Person && k.CreatedAt.Equal(key.CreatedAt) {
			return h.id, true, nil
		}
	}
	return "", false, nil
}

func (r *fakeRemote) InsertHistory(ctx context.Context, owner string, row repository.HistoryRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls.historyInsert++
	r.history = append(r.history, fakeHistory{owner: owner, id: r.nextID("history"), row: row})
	return nil
}

func (r *fakeRemote) ListBooks(ctx context.Context, owner string) ([]repository.RemoteBook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.RemoteBook
	for _, b := range r.books {
		if b.owner == owner {
			out = append(out, b.row)
		}
	}
	return out, nil
}

func (r *fakeRemote) ListCards(ctx context.Context, owner string) ([]repository.RemoteCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.RemoteCard
	for _, c := range r.cards {
		if c.owner == owner {
			out = append(out, c.row)
		}
	}
	return out, nil
}

func (r *fakeRemote) ListRelations(ctx context.Context, owner string) ([]repository.RelationRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.RelationRow, 0, len(r.relations))
	for _, rel := range r.relations {
		out = append(out, rel)
	}
	return out, nil
}

func (r *fakeRemote) DeleteOrphanCards(ctx context.Context, owner string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	referenced := make(map[string]bool)
	for k := range r.relations {
		referenced[k.card] = true
	}
	var kept []*fakeCard
	var n int64
	for _, c := range r.cards {
		if c.owner == owner && !referenced[c.row.ID] {
			n++
			continue
		}
		kept = append(kept, c)
	}
	r.cards = kept
	return n, nil
}

func (r *fakeRemote) addBook(owner, name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID("book")
	r.books = append(r.books, &fakeBook{owner: owner, row: repository.RemoteBook{ID: id, Name: name}})
	return id
}

func (r *fakeRemote) addCard(owner, word string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID("card")
	r.cards = append(r.cards, &fakeCard{owner: owner, row: repository.RemoteCard{ID: id, Word: word}})
	return id
}

func (r *fakeRemote) addRelation(book, card string, status entity.LearningStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relations[relationPair{book: book, card: card}] = repository.RelationRow{WordBookID: book, WordCardID: card, LearningStatus: status}
}

func (r *fakeRemote) counts() (books, cards, relations, history int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.books), len(r.cards), len(r.relations), len(r.history)
}

func (r *fakeRemote) callCounts() remoteCalls {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type staticSession struct {
	owner string
	err   error
}

func (s staticSession) CurrentOwner(ctx context.Context) (string, error) {
	return s.owner, s.err
}

// testClock advances one second per call.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestEngine(local repository.LocalStore, remote repository.RemoteStore, opts ...Option) *Engine {
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts = append([]Option{WithClock(newTestClock().Now)}, opts...)
	return NewEngine(local, remote, staticSession{owner: testOwner}, logger, opts...)
}

func card(id, word string, status entity.LearningStatus) entity.WordCard {
	return entity.WordCard{
		ID:             id,
		Word:           word,
		LearningStatus: status,
		CreatedAt:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func book(id, name string, cards ...entity.WordCard) entity.WordBook {
	return entity.WordBook{
		ID:             id,
		Name:           name,
		TargetLanguage: entity.LanguageSpanish,
		CreatedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Words:          cards,
	}
}
