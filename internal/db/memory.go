package db

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the Repository used when no database is configured.
type MemoryStore struct {
	mu         sync.Mutex
	nextTypeID uint
	nextGameID uint
	categories []Category
	rooms      map[string]*Room
	users      map[string]*User
	games      []Game
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextTypeID: 1,
		nextGameID: 1,
		rooms:      make(map[string]*Room),
		users:      make(map[string]*User),
	}
}

func (m *MemoryStore) RoomByID(ctx context.Context, id string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[NormalizeRoomID(id)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *room
	return &copied, nil
}

func (m *MemoryStore) UserByID(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *MemoryStore) UserByUsername(ctx context.Context, roomID, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.findUserLocked(NormalizeRoomID(roomID), NormalizeUsername(username))
	if user == nil {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *MemoryStore) Categories(ctx context.Context) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]Category, len(m.categories))
	copy(list, m.categories)
	return list, nil
}

func (m *MemoryStore) RecordRoundAssignment(ctx context.Context, spyID, keyword string) (*Game, error) {
	if _, err := uuid.Parse(spyID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	game := Game{ID: m.nextGameID, SpyID: spyID, Keyword: keyword, CreatedAt: time.Now().UTC()}
	m.nextGameID++
	m.games = append(m.games, game)
	return &game, nil
}

// Games returns the recorded round assignments in insertion order.
func (m *MemoryStore) Games() []Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]Game, len(m.games))
	copy(list, m.games)
	return list
}

func (m *MemoryStore) CreateCategory(ctx context.Context, title string, words []string) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	title = strings.TrimSpace(title)
	for _, existing := range m.categories {
		if existing.Title == title {
			return nil, ErrDuplicate
		}
	}
	now := time.Now().UTC()
	category := Category{ID: m.nextTypeID, Title: title, Words: words, CreatedAt: now, UpdatedAt: now}
	m.nextTypeID++
	m.categories = append(m.categories, category)
	return &category, nil
}

func (m *MemoryStore) UpsertCategory(ctx context.Context, title string, words []string) (*Category, error) {
	category, err := m.CreateCategory(ctx, title, words)
	if !errors.Is(err, ErrDuplicate) {
		return category, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.categories {
		if m.categories[i].Title == strings.TrimSpace(title) {
			m.categories[i].Words = words
			m.categories[i].UpdatedAt = time.Now().UTC()
			updated := m.categories[i]
			return &updated, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateRoom(ctx context.Context, typeID *uint) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createRoomLocked(typeID, nil)
}

func (m *MemoryStore) CreateRoomWithOwner(ctx context.Context, username string, typeID *uint) (*Room, *User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := &User{ID: uuid.NewString(), Username: NormalizeUsername(username), CreatedAt: time.Now().UTC()}
	room, err := m.createRoomLocked(typeID, &user.ID)
	if err != nil {
		return nil, nil, err
	}
	user.RoomID = &room.ID
	m.users[user.ID] = user
	copied := *user
	return room, &copied, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, username, roomID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roomID = NormalizeRoomID(roomID)
	username = NormalizeUsername(username)
	if _, ok := m.rooms[roomID]; !ok {
		return nil, ErrNotFound
	}
	if m.findUserLocked(roomID, username) != nil {
		return nil, ErrDuplicate
	}
	user := &User{ID: uuid.NewString(), Username: username, RoomID: &roomID, CreatedAt: time.Now().UTC()}
	m.users[user.ID] = user
	copied := *user
	return &copied, nil
}

func (m *MemoryStore) createRoomLocked(typeID *uint, ownerID *string) (*Room, error) {
	if typeID != nil && !m.hasCategoryLocked(*typeID) {
		return nil, ErrNotFound
	}
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code := NewRoomCode()
		if _, taken := m.rooms[code]; taken {
			continue
		}
		room := &Room{ID: code, TypeID: typeID, OwnerID: ownerID, CreatedAt: time.Now().UTC()}
		m.rooms[code] = room
		copied := *room
		return &copied, nil
	}
	return nil, errors.New("could not allocate a room code")
}

func (m *MemoryStore) hasCategoryLocked(id uint) bool {
	for _, category := range m.categories {
		if category.ID == id {
			return true
		}
	}
	return false
}

func (m *MemoryStore) findUserLocked(roomID, username string) *User {
	for _, user := range m.users {
		if user.RoomID == nil || *user.RoomID != roomID {
			continue
		}
		if strings.EqualFold(user.Username, username) {
			return user
		}
	}
	return nil
}
