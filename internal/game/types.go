package game

import (
	"context"
	"time"

	"spy-game/internal/db"
)

const (
	EventRosterUpdated     = "roster-updated"
	EventRoomJoined        = "room-joined"
	EventRoundStarted      = "round-started"
	EventCategoriesUpdated = "categories-updated"
	EventVotingOpened      = "voting-opened"
	EventVoteResults       = "vote-results"
	EventTimerUpdated      = "timer-updated"
	EventTimerPaused       = "timer-paused"
	EventTimerResumed      = "timer-resumed"
	EventTimerExpired      = "timer-expired"
	EventJoinRejected      = "join-rejected"
	EventTimerError        = "timer-error"
	EventError             = "error"
	EventRoomClosed        = "room-closed"
)

// Message is the envelope for everything sent to a connection.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Notifier delivers a message to one live connection. Implementations must not
// block: Send is called while room state is locked.
type Notifier interface {
	Send(connID string, msg Message)
}

// Mirror receives a copy of selected room events once the state lock is released.
type Mirror interface {
	Publish(roomID string, msg Message)
}

// Directory is the persisted store as seen by the room orchestrator.
type Directory interface {
	RoomByID(ctx context.Context, id string) (*db.Room, error)
	UserByID(ctx context.Context, id string) (*db.User, error)
	UserByUsername(ctx context.Context, roomID, username string) (*db.User, error)
	Categories(ctx context.Context) ([]db.Category, error)
	RecordRoundAssignment(ctx context.Context, spyID, keyword string) (*db.Game, error)
}

type Participant struct {
	ConnID   string
	Username string
	UserID   string
}

type RosterEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type WordChoice struct {
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

type RoundState struct {
	SpyConnID   string
	SpyUsername string
	SpyUserID   string
	Word        string
	SpyWord     string
	Words       []WordChoice
	StartedAt   time.Time
}

type CategoryView struct {
	ID       uint         `json:"id"`
	Title    string       `json:"title"`
	Selected bool         `json:"selected"`
	Words    []WordChoice `json:"type"`
}

type JoinedPayload struct {
	RoomID        string         `json:"room_id"`
	Username      string         `json:"username"`
	UserID        string         `json:"user_id"`
	IsOwner       bool           `json:"is_owner"`
	OwnerUsername string         `json:"owner_username,omitempty"`
	CategoryID    *uint          `json:"category_id,omitempty"`
	Categories    []CategoryView `json:"categories"`
}

// RoundPayload is identical for every member; clients compare their own
// username with SpyUsername to pick which word to show.
type RoundPayload struct {
	SpyUsername string       `json:"spy_username"`
	Keyword     string       `json:"keyword"`
	SpyKeyword  string       `json:"spy_keyword"`
	Words       []WordChoice `json:"words"`
}

type TimerPayload struct {
	Remaining int `json:"remaining"`
}

type VotingPayload struct {
	Players []RosterEntry `json:"players"`
}

type VoteRecord struct {
	Voter  string `json:"voter"`
	Target string `json:"target"`
}

type TallyEntry struct {
	Username string `json:"username"`
	Votes    int    `json:"votes"`
}

type VoteResults struct {
	SpyUsername string       `json:"spy_username"`
	Keyword     string       `json:"keyword"`
	SpyKeyword  string       `json:"spy_keyword"`
	MostVoted   string       `json:"most_voted"`
	SpyCaught   bool         `json:"spy_caught"`
	Votes       []VoteRecord `json:"votes"`
	Tally       []TallyEntry `json:"tally"`
}

type RoomClosedPayload struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

// CategoryViews renders categories the way the web client lists them, every entry selected.
func CategoryViews(categories []db.Category) []CategoryView {
	views := make([]CategoryView, 0, len(categories))
	for _, category := range categories {
		words := make([]WordChoice, 0, len(category.Words))
		for _, word := range category.Words {
			words = append(words, WordChoice{Name: word, Selected: true})
		}
		views = append(views, CategoryView{
			ID:       category.ID,
			Title:    category.Title,
			Selected: true,
			Words:    words,
		})
	}
	return views
}
