package db

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

const (
	roomCodeLength   = 4
	roomCodeAttempts = 8
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Repository is the persisted side of the game: categories, rooms, users and
// the audit of round assignments.
type Repository interface {
	RoomByID(ctx context.Context, id string) (*Room, error)
	UserByID(ctx context.Context, id string) (*User, error)
	UserByUsername(ctx context.Context, roomID, username string) (*User, error)
	Categories(ctx context.Context) ([]Category, error)
	RecordRoundAssignment(ctx context.Context, spyID, keyword string) (*Game, error)

	CreateCategory(ctx context.Context, title string, words []string) (*Category, error)
	UpsertCategory(ctx context.Context, title string, words []string) (*Category, error)
	CreateRoom(ctx context.Context, typeID *uint) (*Room, error)
	CreateRoomWithOwner(ctx context.Context, username string, typeID *uint) (*Room, *User, error)
	CreateUser(ctx context.Context, username, roomID string) (*User, error)
}

type Store struct {
	conn *gorm.DB
}

func NewStore(conn *gorm.DB) *Store {
	return &Store{conn: conn}
}

func (s *Store) RoomByID(ctx context.Context, id string) (*Room, error) {
	var room Room
	if err := s.conn.WithContext(ctx).Where("id = ?", NormalizeRoomID(id)).First(&room).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var user User
	if err := s.conn.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) UserByUsername(ctx context.Context, roomID, username string) (*User, error) {
	var user User
	err := s.conn.WithContext(ctx).
		Where("rooms_id = ? AND LOWER(username) = LOWER(?)", NormalizeRoomID(roomID), NormalizeUsername(username)).
		Order("created_at DESC").
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := s.conn.WithContext(ctx).Order("id ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) RecordRoundAssignment(ctx context.Context, spyID, keyword string) (*Game, error) {
	if _, err := uuid.Parse(spyID); err != nil {
		return nil, fmt.Errorf("spy id: %w", err)
	}
	record := Game{SpyID: spyID, Keyword: keyword}
	if err := s.conn.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) CreateCategory(ctx context.Context, title string, words []string) (*Category, error) {
	record := Category{Title: strings.TrimSpace(title), Words: words}
	if err := s.conn.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

func (s *Store) UpsertCategory(ctx context.Context, title string, words []string) (*Category, error) {
	record := Category{Title: strings.TrimSpace(title)}
	err := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(Category{Title: record.Title}).Attrs(Category{Words: words}).FirstOrCreate(&record).Error; err != nil {
			return err
		}
		record.Words = words
		return tx.Model(&record).Update("type", record.Words).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) CreateRoom(ctx context.Context, typeID *uint) (*Room, error) {
	var created *Room
	err := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := createRoomTx(tx, typeID, nil)
		created = room
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateRoomWithOwner creates the owner and their room in one transaction.
func (s *Store) CreateRoomWithOwner(ctx context.Context, username string, typeID *uint) (*Room, *User, error) {
	var (
		room  *Room
		owner *User
	)
	err := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := User{ID: uuid.NewString(), Username: NormalizeUsername(username)}
		if err := tx.Create(&user).Error; err != nil {
			return translate(err)
		}
		created, err := createRoomTx(tx, typeID, &user.ID)
		if err != nil {
			return err
		}
		if err := tx.Model(&user).Update("rooms_id", created.ID).Error; err != nil {
			return translate(err)
		}
		user.RoomID = &created.ID
		room = created
		owner = &user
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return room, owner, nil
}

func (s *Store) CreateUser(ctx context.Context, username, roomID string) (*User, error) {
	roomID = NormalizeRoomID(roomID)
	username = NormalizeUsername(username)
	var created *User
	err := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room Room
		if err := tx.Where("id = ?", roomID).First(&room).Error; err != nil {
			return translate(err)
		}
		var count int64
		if err := tx.Model(&User{}).
			Where("rooms_id = ? AND LOWER(username) = LOWER(?)", roomID, username).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicate
		}
		user := User{ID: uuid.NewString(), Username: username, RoomID: &roomID}
		if err := tx.Create(&user).Error; err != nil {
			return translate(err)
		}
		created = &user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func createRoomTx(tx *gorm.DB, typeID *uint, ownerID *string) (*Room, error) {
	if typeID != nil {
		var category Category
		if err := tx.Where("id = ?", *typeID).First(&category).Error; err != nil {
			return nil, translate(err)
		}
	}
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		room := Room{ID: NewRoomCode(), TypeID: typeID, OwnerID: ownerID}
		var existing int64
		if err := tx.Model(&Room{}).Where("id = ?", room.ID).Count(&existing).Error; err != nil {
			return nil, err
		}
		if existing > 0 {
			continue
		}
		if err := tx.Create(&room).Error; err != nil {
			return nil, translate(err)
		}
		return &room, nil
	}
	return nil, errors.New("could not allocate a room code")
}

// NewRoomCode returns a short code without ambiguous characters.
func NewRoomCode() string {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "AAAA"
	}
	for i := range buf {
		buf[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
	}
	return string(buf)
}

func NormalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// NormalizeUsername trims name and collapses inner whitespace runs to one space.
func NormalizeUsername(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// IsRoomCode reports whether id, once normalized, could have come from NewRoomCode.
func IsRoomCode(id string) bool {
	id = NormalizeRoomID(id)
	if len(id) != roomCodeLength {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune(roomCodeAlphabet, r) {
			return false
		}
	}
	return true
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
