package game

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"spy-game/internal/db"

	"github.com/rs/zerolog/log"
)

type joinLookup struct {
	record        *db.Room
	user          *db.User
	ownerUsername string
	categories    []db.Category
}

// Join adds the connection to roomID under username and returns the roster
// that was broadcast. Store lookups happen before room state is touched.
func (s *Supervisor) Join(ctx context.Context, connID, roomID, username string) ([]Participant, error) {
	roomID = db.NormalizeRoomID(roomID)
	username = db.NormalizeUsername(username)
	switch {
	case connID == "":
		return nil, ErrConnectionRequired
	case roomID == "":
		return nil, ErrRoomIDRequired
	case username == "":
		return nil, ErrUsernameRequired
	case utf8.RuneCountInString(username) > s.maxUsernameLength:
		return nil, ErrUsernameTooLong
	}

	lookup, err := s.lookupJoin(ctx, roomID, username)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.unlock()

	if current := s.roomOfLocked(connID); current != nil {
		if current.id == roomID {
			return nil, ErrAlreadyJoined
		}
		if target, ok := s.rooms[roomID]; ok && target.hasUsername(username) {
			return nil, ErrUsernameTaken
		}
		s.removeLocked(current, "switched room", func(p Participant) bool {
			return p.ConnID == connID
		})
	}

	r, ok := s.rooms[roomID]
	if !ok {
		r = &room{id: roomID, categoryID: lookup.record.TypeID}
		if lookup.record.OwnerID != nil {
			r.ownerID = *lookup.record.OwnerID
		}
		s.rooms[roomID] = r
		log.Info().Str("room_id", roomID).Msg("room opened")
	}
	if r.hasUsername(username) {
		return nil, ErrUsernameTaken
	}

	participant := Participant{ConnID: connID, Username: username, UserID: lookup.user.ID}
	r.participants = append(r.participants, participant)
	log.Info().
		Str("room_id", roomID).
		Str("conn_id", connID).
		Str("username", username).
		Int("participants", len(r.participants)).
		Msg("participant joined")

	s.broadcastRosterLocked(r)
	s.sendLocked(connID, Message{Type: EventRoomJoined, Data: JoinedPayload{
		RoomID:        roomID,
		Username:      username,
		UserID:        participant.UserID,
		IsOwner:       r.ownerID != "" && r.ownerID == participant.UserID,
		OwnerUsername: lookup.ownerUsername,
		CategoryID:    r.categoryID,
		Categories:    CategoryViews(lookup.categories),
	}})
	return r.snapshot(), nil
}

func (s *Supervisor) lookupJoin(ctx context.Context, roomID, username string) (*joinLookup, error) {
	record, err := s.dir.RoomByID(ctx, roomID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("resolve room failed")
		return nil, dependencyError(err)
	}
	user, err := s.dir.UserByUsername(ctx, roomID, username)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("username", username).Msg("resolve user failed")
		return nil, dependencyError(err)
	}
	lookup := &joinLookup{record: record, user: user}
	if record.OwnerID != nil {
		owner, err := s.dir.UserByID(ctx, *record.OwnerID)
		switch {
		case err == nil:
			lookup.ownerUsername = owner.Username
		case !errors.Is(err, db.ErrNotFound):
			log.Error().Err(err).Str("room_id", roomID).Msg("resolve room owner failed")
			return nil, dependencyError(err)
		}
	}
	categories, err := s.dir.Categories(ctx)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("load categories failed")
		return nil, dependencyError(err)
	}
	lookup.categories = categories
	return lookup, nil
}

// Leave removes whoever in roomID matches the connection or the username.
// Leaving a room one is not in is a no-op.
func (s *Supervisor) Leave(connID, roomID, username string) []Participant {
	roomID = db.NormalizeRoomID(roomID)
	username = db.NormalizeUsername(username)

	s.mu.Lock()
	defer s.unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	s.removeLocked(r, "left", func(p Participant) bool {
		if connID != "" && p.ConnID == connID {
			return true
		}
		return username != "" && strings.EqualFold(p.Username, username)
	})
	if _, open := s.rooms[roomID]; !open {
		return nil
	}
	return r.snapshot()
}

// Disconnect removes connID from whichever room holds it. It returns that
// room's id and whether the room was closed as a result.
func (s *Supervisor) Disconnect(connID string) (string, bool) {
	if connID == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.unlock()
	r := s.roomOfLocked(connID)
	if r == nil {
		return "", false
	}
	s.removeLocked(r, "disconnected", func(p Participant) bool {
		return p.ConnID == connID
	})
	_, open := s.rooms[r.id]
	return r.id, !open
}

// UpdateCategories relays a client's category curation to the whole room as-is.
func (s *Supervisor) UpdateCategories(roomID string, updated any) error {
	roomID = db.NormalizeRoomID(roomID)
	if roomID == "" {
		return ErrRoomIDRequired
	}
	s.mu.Lock()
	defer s.unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	s.broadcastLocked(r, Message{Type: EventCategoriesUpdated, Data: updated})
	return nil
}
