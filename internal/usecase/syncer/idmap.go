package syncer

import (
	"strings"
	"sync"
)

const cardKeySeparator = "::"

// IDMap translates local identifiers to remote identifiers for one run.
//
// Card mappings are keyed by GenerateCardLocalKey because the same word may
// exist as a separate local row in several books. A second index keyed by the
// plain card local ID serves practice history, which does not know the book.
// A local ID that resolves to more than one remote card is ambiguous and is
// left out of that index. Writers from concurrent card chunks are serialized
// by mu.
type IDMap struct {
	mu           sync.RWMutex
	books        map[string]string
	cards        map[string]string
	cardsByLocal map[string]string
	ambiguous    map[string]struct{}
}

// NewIDMap returns an empty table.
func NewIDMap() *IDMap {
	m := &IDMap{}
	m.Clear()
	return m
}

// Clear drops every mapping.
func (m *IDMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books = make(map[string]string)
	m.cards = make(map[string]string)
	m.cardsByLocal = make(map[string]string)
	m.ambiguous = make(map[string]struct{})
}

func (m *IDMap) SetBookMapping(localID, remoteID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[localID] = remoteID
}

// GetBookRemoteID reports false when the book has not been resolved in this run.
func (m *IDMap) GetBookRemoteID(localID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.books[localID]
	return id, ok
}

// GenerateCardLocalKey builds the composite key of a card row inside a book.
func GenerateCardLocalKey(bookID, cardLocalID string) string {
	return bookID + cardKeySeparator + cardLocalID
}

// SetCardMapping records the remote ID for a composite card key and for the
// card local ID the key was built from.
func (m *IDMap) SetCardMapping(localKey, remoteID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[localKey] = remoteID
	_, cardID, ok := splitCardLocalKey(localKey)
	if !ok {
		return
	}
	if prev, seen := m.cardsByLocal[cardID]; seen && prev != remoteID {
		m.ambiguous[cardID] = struct{}{}
		return
	}
	m.cardsByLocal[cardID] = remoteID
}

func (m *IDMap) GetCardRemoteID(localKey string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.cards[localKey]
	return id, ok
}

// GetCardRemoteIDByLocalID looks a card up by its local ID alone. It reports
// false for unmapped and for ambiguous IDs.
func (m *IDMap) GetCardRemoteIDByLocalID(cardLocalID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, dup := m.ambiguous[cardLocalID]; dup {
		return "", false
	}
	id, ok := m.cardsByLocal[cardLocalID]
	return id, ok
}

// IsCardLocalIDAmbiguous reports whether cardLocalID was mapped to different
// remote cards in different books during this run.
func (m *IDMap) IsCardLocalIDAmbiguous(cardLocalID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, dup := m.ambiguous[cardLocalID]
	return dup
}

// Len returns the number of book and card mappings.
func (m *IDMap) Len() (books, cards int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.books), len(m.cards)
}

func splitCardLocalKey(key string) (bookID, cardID string, ok bool) {
	return strings.Cut(key, cardKeySeparator)
}
