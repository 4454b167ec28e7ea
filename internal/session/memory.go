package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"coinsage/internal/models"
)

// Store persists conversation turns between sessions. Implementations
// are interchangeable so the query path stays storage-agnostic.
type Store interface {
	Load() ([]models.ConversationTurn, error)
	Save(turns []models.ConversationTurn) error
}

// Memory holds the most recent conversation turns for one session.
// When the cap is reached the oldest turn is evicted first.
type Memory struct {
	mu    sync.Mutex
	turns []models.ConversationTurn
	max   int
}

// NewMemory creates a conversation memory bounded to max turns.
func NewMemory(max int) *Memory {
	if max <= 0 {
		max = 5
	}
	return &Memory{max: max}
}

// Update appends one user/bot exchange, evicting the oldest turn when
// the memory is full.
func (m *Memory) Update(user, bot string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, models.ConversationTurn{User: user, Bot: bot})
	if len(m.turns) > m.max {
		m.turns = m.turns[len(m.turns)-m.max:]
	}
}

// Turns returns a copy of the held turns, oldest first.
func (m *Memory) Turns() []models.ConversationTurn {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ConversationTurn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Persist writes the current turns to store.
func (m *Memory) Persist(store Store) error {
	return store.Save(m.Turns())
}

// Restore replaces the held turns with the stored ones, keeping at
// most the memory's cap.
func (m *Memory) Restore(store Store) error {
	turns, err := store.Load()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(turns) > m.max {
		turns = turns[len(turns)-m.max:]
	}
	m.turns = turns
	return nil
}

// FileStore persists turns as a JSON file.
type FileStore struct {
	Path string
}

// Load reads the stored turns. A missing file is an empty history, not
// an error.
func (s FileStore) Load() ([]models.ConversationTurn, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var turns []models.ConversationTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

// Save writes turns to the file.
func (s FileStore) Save(turns []models.ConversationTurn) error {
	data, err := json.Marshal(turns)
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0o644)
}
