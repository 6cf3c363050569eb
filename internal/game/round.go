package game

import (
	"context"

	"spy-game/internal/db"

	"github.com/rs/zerolog/log"
)

type roundDraft struct {
	room    *room
	seq     uint64
	spy     Participant
	word    string
	spyWord string
	words   []string
}

// StartRound picks a spy and two distinct words for roomID, records the
// assignment in the store and broadcasts the round to every member.
func (s *Supervisor) StartRound(ctx context.Context, connID, roomID string, words []string) error {
	roomID = db.NormalizeRoomID(roomID)
	if roomID == "" {
		return ErrRoomIDRequired
	}
	draft, err := s.drawRound(roomID, db.CleanWords(words))
	if err != nil {
		return err
	}
	record, err := s.dir.RecordRoundAssignment(ctx, draft.spy.UserID, draft.word)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("conn_id", connID).Msg("record round assignment failed")
		return dependencyError(err)
	}
	if err := s.commitRound(roomID, draft); err != nil {
		log.Warn().
			Err(err).
			Str("room_id", roomID).
			Uint("game_id", record.ID).
			Msg("round discarded after its assignment was recorded")
		return err
	}
	return nil
}

func (s *Supervisor) drawRound(roomID string, words []string) (*roundDraft, error) {
	s.mu.Lock()
	defer s.unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if len(r.participants) == 0 {
		return nil, ErrEmptyRoster
	}
	if len(words) < 2 {
		return nil, ErrNotEnoughWords
	}
	spy := r.participants[s.intn(len(r.participants))]
	word, spyWord := s.pickWords(words)
	return &roundDraft{
		room:    r,
		seq:     r.roundSeq,
		spy:     spy,
		word:    word,
		spyWord: spyWord,
		words:   words,
	}, nil
}

// pickWords draws the common word, then redraws the spy word until it differs.
// words must hold at least two distinct values.
func (s *Supervisor) pickWords(words []string) (string, string) {
	word := words[s.intn(len(words))]
	spyWord := word
	for spyWord == word {
		spyWord = words[s.intn(len(words))]
	}
	return word, spyWord
}

// commitRound re-validates the room after the store write: it may have closed,
// lost the spy, or started another round in the meantime. A running timer is
// cancelled without a broadcast.
func (s *Supervisor) commitRound(roomID string, draft *roundDraft) error {
	s.mu.Lock()
	defer s.unlock()
	r, ok := s.rooms[roomID]
	if !ok || r != draft.room {
		return ErrRoomNotFound
	}
	if r.roundSeq != draft.seq {
		return ErrRoundSuperseded
	}
	if _, present := r.participant(draft.spy.ConnID); !present {
		return ErrRoundSuperseded
	}

	choices := make([]WordChoice, 0, len(draft.words))
	for _, word := range draft.words {
		choices = append(choices, WordChoice{Name: word, Selected: true})
	}
	s.cancelTickLocked(r)
	r.timer = nil
	r.roundSeq++
	r.vote = nil
	r.round = &RoundState{
		SpyConnID:   draft.spy.ConnID,
		SpyUsername: draft.spy.Username,
		SpyUserID:   draft.spy.UserID,
		Word:        draft.word,
		SpyWord:     draft.spyWord,
		Words:       choices,
		StartedAt:   s.clock.Now(),
	}
	msg := Message{Type: EventRoundStarted, Data: RoundPayload{
		SpyUsername: draft.spy.Username,
		Keyword:     draft.word,
		SpyKeyword:  draft.spyWord,
		Words:       choices,
	}}
	s.broadcastLocked(r, msg)
	s.queueMirrorLocked(roomID, msg)
	log.Info().
		Str("room_id", roomID).
		Uint64("round", r.roundSeq).
		Int("participants", len(r.participants)).
		Int("words", len(choices)).
		Msg("round started")
	return nil
}

// CurrentRound returns a copy of the active round of roomID.
func (s *Supervisor) CurrentRound(roomID string) (RoundState, bool) {
	s.mu.Lock()
	defer s.unlock()
	r, ok := s.rooms[db.NormalizeRoomID(roomID)]
	if !ok || r.round == nil {
		return RoundState{}, false
	}
	round := *r.round
	round.Words = append([]WordChoice(nil), r.round.Words...)
	return round, true
}
