package game

import (
	"math/rand"
	"strings"
	"sync"

	"spy-game/internal/db"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const defaultMaxUsernameLength = 20

// Supervisor owns every room record. All room events are serialized by mu; the
// record for a room id is created on first join and deleted, with its timer,
// round and vote session, when its roster becomes empty.
type Supervisor struct {
	mu      sync.Mutex
	rooms   map[string]*room
	pending []mirrored

	dir               Directory
	notify            Notifier
	mirror            Mirror
	clock             clockwork.Clock
	intn              func(n int) int
	maxUsernameLength int
}

type room struct {
	id           string
	ownerID      string
	categoryID   *uint
	participants []Participant
	round        *RoundState
	roundSeq     uint64
	timer        *timerState
	vote         *voteSession
}

type mirrored struct {
	roomID string
	msg    Message
}

type Option func(*Supervisor)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Supervisor) {
		s.clock = clock
	}
}

func WithMirror(mirror Mirror) Option {
	return func(s *Supervisor) {
		s.mirror = mirror
	}
}

// WithRandom replaces the uniform source used to pick spies and words.
// intn must return a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(s *Supervisor) {
		s.intn = intn
	}
}

func WithMaxUsernameLength(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.maxUsernameLength = n
		}
	}
}

func NewSupervisor(dir Directory, notify Notifier, opts ...Option) *Supervisor {
	s := &Supervisor{
		rooms:             make(map[string]*room),
		dir:               dir,
		notify:            notify,
		clock:             clockwork.NewRealClock(),
		intn:              rand.Intn,
		maxUsernameLength: defaultMaxUsernameLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// unlock releases mu and then hands queued events to the mirror, so a slow
// mirror never holds up room events.
func (s *Supervisor) unlock() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if s.mirror == nil {
		return
	}
	for _, event := range pending {
		s.mirror.Publish(event.roomID, event.msg)
	}
}

func (s *Supervisor) queueMirrorLocked(roomID string, msg Message) {
	if s.mirror == nil {
		return
	}
	s.pending = append(s.pending, mirrored{roomID: roomID, msg: msg})
}

func (s *Supervisor) sendLocked(connID string, msg Message) {
	if s.notify == nil {
		return
	}
	s.notify.Send(connID, msg)
}

func (s *Supervisor) broadcastLocked(r *room, msg Message) {
	for _, participant := range r.participants {
		s.sendLocked(participant.ConnID, msg)
	}
}

func (s *Supervisor) broadcastRosterLocked(r *room) {
	s.broadcastLocked(r, Message{Type: EventRosterUpdated, Data: r.roster()})
}

// removeLocked drops every participant of r accepted by match. It broadcasts
// the new roster, or closes the room when nobody is left, and reports whether
// anything was removed.
func (s *Supervisor) removeLocked(r *room, reason string, match func(Participant) bool) bool {
	kept := make([]Participant, 0, len(r.participants))
	removed := false
	for _, participant := range r.participants {
		if match(participant) {
			removed = true
			log.Info().
				Str("room_id", r.id).
				Str("conn_id", participant.ConnID).
				Str("username", participant.Username).
				Str("reason", reason).
				Msg("participant removed")
			continue
		}
		kept = append(kept, participant)
	}
	if !removed {
		return false
	}
	r.participants = kept
	if len(r.participants) == 0 {
		s.closeRoomLocked(r, reason)
		return true
	}
	s.broadcastRosterLocked(r)
	return true
}

// closeRoomLocked is the only place room state is destroyed.
func (s *Supervisor) closeRoomLocked(r *room, reason string) {
	s.cancelTickLocked(r)
	r.timer = nil
	r.round = nil
	r.vote = nil
	delete(s.rooms, r.id)
	s.queueMirrorLocked(r.id, Message{
		Type: EventRoomClosed,
		Data: RoomClosedPayload{RoomID: r.id, Reason: reason},
	})
	log.Info().Str("room_id", r.id).Str("reason", reason).Msg("room closed")
}

func (s *Supervisor) roomOfLocked(connID string) *room {
	for _, r := range s.rooms {
		if _, ok := r.participant(connID); ok {
			return r
		}
	}
	return nil
}

// HasRoom reports whether a live record exists for roomID.
func (s *Supervisor) HasRoom(roomID string) bool {
	s.mu.Lock()
	defer s.unlock()
	_, ok := s.rooms[db.NormalizeRoomID(roomID)]
	return ok
}

// Roster returns the current participants of roomID in join order.
func (s *Supervisor) Roster(roomID string) ([]Participant, bool) {
	s.mu.Lock()
	defer s.unlock()
	r, ok := s.rooms[db.NormalizeRoomID(roomID)]
	if !ok {
		return nil, false
	}
	return r.snapshot(), true
}

// RoomCount is the number of live room records.
func (s *Supervisor) RoomCount() int {
	s.mu.Lock()
	defer s.unlock()
	return len(s.rooms)
}

func (r *room) participant(connID string) (Participant, bool) {
	for _, participant := range r.participants {
		if participant.ConnID == connID {
			return participant, true
		}
	}
	return Participant{}, false
}

func (r *room) hasUsername(username string) bool {
	for _, participant := range r.participants {
		if strings.EqualFold(participant.Username, username) {
			return true
		}
	}
	return false
}

func (r *room) snapshot() []Participant {
	list := make([]Participant, len(r.participants))
	copy(list, r.participants)
	return list
}

func (r *room) roster() []RosterEntry {
	return rosterOf(r.participants)
}

func rosterOf(participants []Participant) []RosterEntry {
	entries := make([]RosterEntry, 0, len(participants))
	for _, participant := range participants {
		entries = append(entries, RosterEntry{ID: participant.UserID, Username: participant.Username})
	}
	return entries
}
