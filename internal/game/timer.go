package game

import (
	"time"

	"spy-game/internal/db"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type timerState struct {
	remaining int
	running   bool
	handle    *tickHandle
}

// tickHandle is one running countdown. A tick only acts while its handle is
// still the one stored on the room, so a tick racing a cancel is dropped.
type tickHandle struct {
	ticker clockwork.Ticker
	stop   chan struct{}
}

func (h *tickHandle) cancel() {
	h.ticker.Stop()
	close(h.stop)
}

// StartTimer starts a countdown of seconds for roomID, replacing any timer the
// room already has.
func (s *Supervisor) StartTimer(roomID string, seconds int) error {
	roomID = db.NormalizeRoomID(roomID)
	if roomID == "" {
		return ErrRoomIDRequired
	}
	if seconds <= 0 {
		return ErrInvalidDuration
	}
	s.mu.Lock()
	defer s.unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	s.cancelTickLocked(r)
	r.timer = &timerState{remaining: seconds, running: true}
	s.startTickLocked(r)
	log.Info().Str("room_id", roomID).Int("seconds", seconds).Msg("timer started")
	return nil
}

func (s *Supervisor) PauseTimer(roomID string) error {
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
	if r.timer == nil || !r.timer.running {
		return ErrNoActiveTimer
	}
	s.cancelTickLocked(r)
	s.broadcastLocked(r, Message{Type: EventTimerPaused, Data: TimerPayload{Remaining: r.timer.remaining}})
	log.Info().Str("room_id", roomID).Int("remaining", r.timer.remaining).Msg("timer paused")
	return nil
}

func (s *Supervisor) ResumeTimer(roomID string) error {
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
	if r.timer == nil || r.timer.running || r.timer.remaining <= 0 {
		return ErrNoPausedTimer
	}
	r.timer.running = true
	s.startTickLocked(r)
	s.broadcastLocked(r, Message{Type: EventTimerResumed, Data: TimerPayload{Remaining: r.timer.remaining}})
	log.Info().Str("room_id", roomID).Int("remaining", r.timer.remaining).Msg("timer resumed")
	return nil
}

// TimerStatus reports the remaining seconds of roomID's timer and whether it is ticking.
func (s *Supervisor) TimerStatus(roomID string) (remaining int, running bool, ok bool) {
	s.mu.Lock()
	defer s.unlock()
	r, exists := s.rooms[db.NormalizeRoomID(roomID)]
	if !exists || r.timer == nil {
		return 0, false, false
	}
	return r.timer.remaining, r.timer.running, true
}

func (s *Supervisor) startTickLocked(r *room) {
	handle := &tickHandle{
		ticker: s.clock.NewTicker(time.Second),
		stop:   make(chan struct{}),
	}
	r.timer.handle = handle
	go s.runTicks(r.id, handle)
}

// cancelTickLocked stops the room's ticker within the caller's critical section.
func (s *Supervisor) cancelTickLocked(r *room) {
	if r.timer == nil {
		return
	}
	if r.timer.handle != nil {
		r.timer.handle.cancel()
		r.timer.handle = nil
	}
	r.timer.running = false
}

func (s *Supervisor) runTicks(roomID string, handle *tickHandle) {
	for {
		select {
		case <-handle.stop:
			return
		case <-handle.ticker.Chan():
			if !s.tick(roomID, handle) {
				return
			}
		}
	}
}

// tick advances the countdown by one second and reports whether ticking continues.
func (s *Supervisor) tick(roomID string, handle *tickHandle) bool {
	s.mu.Lock()
	defer s.unlock()
	r, ok := s.rooms[roomID]
	if !ok || r.timer == nil || r.timer.handle != handle {
		return false
	}
	if r.timer.remaining > 0 {
		r.timer.remaining--
		s.broadcastLocked(r, Message{Type: EventTimerUpdated, Data: TimerPayload{Remaining: r.timer.remaining}})
		return true
	}
	s.cancelTickLocked(r)
	r.timer = nil
	s.broadcastLocked(r, Message{Type: EventTimerExpired, Data: TimerPayload{Remaining: 0}})
	log.Info().Str("room_id", roomID).Msg("timer expired")
	return false
}
