package server

import (
	"context"
	"encoding/json"
	"fmt"

	"spy-game/internal/game"

	"github.com/rs/zerolog/log"
)

// Client to server event types.
const (
	eventJoinRoom         = "join-room"
	eventLeaveRoom        = "leave-room"
	eventStartRound       = "start-round"
	eventUpdateCategories = "update-categories"
	eventEndRound         = "end-round"
	eventOpenVoting       = "open-voting"
	eventSubmitVote       = "submit-vote"
	eventStartTimer       = "start-timer"
	eventPauseTimer       = "pause-timer"
	eventResumeTimer      = "resume-timer"
)

var (
	errMalformedMessage = &game.Error{Kind: game.KindValidation, Message: "malformed message"}
	errUnknownEvent     = &game.Error{Kind: game.KindValidation, Message: "unknown event"}
	errInternal         = &game.Error{Kind: game.KindDependency, Message: "internal error"}
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// roomEvent covers the data of every client event; each handler reads the
// fields it needs.
type roomEvent struct {
	RoomID          string          `json:"roomId"`
	Username        string          `json:"username"`
	Words           []string        `json:"words"`
	Updated         json.RawMessage `json:"updated"`
	Voter           string          `json:"voter"`
	Suspect         string          `json:"suspect"`
	DurationSeconds int             `json:"durationSeconds"`
}

type errorPayload struct {
	Event   string         `json:"event"`
	Kind    game.ErrorKind `json:"kind"`
	Message string         `json:"message"`
}

// dispatch runs one client event. Failures are reported to the sender only.
func (s *Server) dispatch(ctx context.Context, connID string, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		s.reply(connID, "", errMalformedMessage)
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Error().
				Str("conn_id", connID).
				Str("event", msg.Type).
				Str("panic", fmt.Sprint(recovered)).
				Msg("room event handler panicked")
			s.reply(connID, msg.Type, errInternal)
		}
	}()

	var event roomEvent
	if len(msg.Data) > 0 && string(msg.Data) != "null" {
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			s.reply(connID, msg.Type, errMalformedMessage)
			return
		}
	}
	if err := s.handleEvent(ctx, connID, msg.Type, event); err != nil {
		log.Debug().
			Err(err).
			Str("conn_id", connID).
			Str("event", msg.Type).
			Str("room_id", event.RoomID).
			Msg("room event rejected")
		s.reply(connID, msg.Type, err)
	}
}

func (s *Server) handleEvent(ctx context.Context, connID, eventType string, event roomEvent) error {
	switch eventType {
	case eventJoinRoom:
		_, err := s.game.Join(ctx, connID, event.RoomID, event.Username)
		return err
	case eventLeaveRoom:
		s.game.Leave(connID, event.RoomID, event.Username)
		return nil
	case eventStartRound:
		return s.game.StartRound(ctx, connID, event.RoomID, event.Words)
	case eventUpdateCategories:
		var updated any = event.Updated
		if len(event.Updated) == 0 {
			updated = nil
		}
		return s.game.UpdateCategories(event.RoomID, updated)
	case eventEndRound, eventOpenVoting:
		return s.game.OpenVoting(event.RoomID)
	case eventSubmitVote:
		return s.game.SubmitVote(event.RoomID, event.Voter, event.Suspect)
	case eventStartTimer:
		seconds := event.DurationSeconds
		if seconds == 0 {
			seconds = s.cfg.TimerDefaultSeconds
		}
		return s.game.StartTimer(event.RoomID, seconds)
	case eventPauseTimer:
		return s.game.PauseTimer(event.RoomID)
	case eventResumeTimer:
		return s.game.ResumeTimer(event.RoomID)
	default:
		return errUnknownEvent
	}
}

func (s *Server) reply(connID, eventType string, err error) {
	s.ws.Send(connID, game.Message{
		Type: errorEventFor(eventType),
		Data: errorPayload{
			Event:   eventType,
			Kind:    game.KindOf(err),
			Message: game.PublicMessage(err),
		},
	})
}

func errorEventFor(eventType string) string {
	switch eventType {
	case eventJoinRoom:
		return game.EventJoinRejected
	case eventStartTimer, eventPauseTimer, eventResumeTimer:
		return game.EventTimerError
	default:
		return game.EventError
	}
}
