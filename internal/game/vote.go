package game

import (
	"strings"

	"spy-game/internal/db"

	"github.com/rs/zerolog/log"
)

type voteSession struct {
	candidates []Participant
	expected   int
	order      []string
	votes      map[string]string
}

// OpenVoting snapshots the roster of roomID as voters and candidates and
// broadcasts the candidate list.
func (s *Supervisor) OpenVoting(roomID string) error {
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
	if len(r.participants) == 0 {
		return ErrEmptyRoster
	}
	if r.round == nil {
		return ErrNoActiveRound
	}
	candidates := r.snapshot()
	r.vote = &voteSession{
		candidates: candidates,
		expected:   len(candidates),
		votes:      make(map[string]string, len(candidates)),
	}
	s.broadcastLocked(r, Message{Type: EventVotingOpened, Data: VotingPayload{Players: rosterOf(candidates)}})
	log.Info().Str("room_id", roomID).Int("expected", len(candidates)).Msg("voting opened")
	return nil
}

// SubmitVote records voter's choice of suspect (a user id), replacing any
// earlier vote by the same voter. Once every eligible voter has voted the
// results are broadcast and the round ends.
func (s *Supervisor) SubmitVote(roomID, voter, suspect string) error {
	roomID = db.NormalizeRoomID(roomID)
	voter = db.NormalizeUsername(voter)
	suspect = strings.TrimSpace(suspect)
	if roomID == "" {
		return ErrRoomIDRequired
	}
	s.mu.Lock()
	defer s.unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	session := r.vote
	if session == nil {
		return ErrNoOpenVote
	}
	ballot, ok := session.candidateByName(voter)
	if !ok {
		return ErrInvalidVoter
	}
	if _, ok := session.candidateByID(suspect); !ok {
		return ErrInvalidVoteTarget
	}
	if _, voted := session.votes[ballot.Username]; !voted {
		session.order = append(session.order, ballot.Username)
	}
	session.votes[ballot.Username] = suspect
	log.Debug().
		Str("room_id", roomID).
		Str("voter", ballot.Username).
		Int("received", len(session.votes)).
		Int("expected", session.expected).
		Msg("vote recorded")

	if len(session.votes) < session.expected {
		return nil
	}
	results := session.results(r.round)
	r.vote = nil
	r.round = nil
	msg := Message{Type: EventVoteResults, Data: results}
	s.broadcastLocked(r, msg)
	s.queueMirrorLocked(roomID, msg)
	log.Info().
		Str("room_id", roomID).
		Str("most_voted", results.MostVoted).
		Bool("spy_caught", results.SpyCaught).
		Msg("vote completed")
	return nil
}

func (v *voteSession) candidateByName(username string) (Participant, bool) {
	for _, candidate := range v.candidates {
		if strings.EqualFold(candidate.Username, username) {
			return candidate, true
		}
	}
	return Participant{}, false
}

func (v *voteSession) candidateByID(userID string) (Participant, bool) {
	for _, candidate := range v.candidates {
		if candidate.UserID == userID {
			return candidate, true
		}
	}
	return Participant{}, false
}

func (v *voteSession) results(round *RoundState) VoteResults {
	records := make([]VoteRecord, 0, len(v.order))
	for _, voter := range v.order {
		target, _ := v.candidateByID(v.votes[voter])
		records = append(records, VoteRecord{Voter: voter, Target: target.Username})
	}
	tally, mostVoted := tallyVotes(records)
	results := VoteResults{
		MostVoted: mostVoted,
		Votes:     records,
		Tally:     tally,
	}
	if round != nil {
		results.SpyUsername = round.SpyUsername
		results.Keyword = round.Word
		results.SpyKeyword = round.SpyWord
		results.SpyCaught = mostVoted != "" && mostVoted == round.SpyUsername
	}
	return results
}

// tallyVotes counts votes per target in the order targets first appear. The
// most voted target is the first one reaching the highest count.
func tallyVotes(records []VoteRecord) ([]TallyEntry, string) {
	tally := make([]TallyEntry, 0, len(records))
	index := make(map[string]int, len(records))
	for _, record := range records {
		i, seen := index[record.Target]
		if !seen {
			i = len(tally)
			index[record.Target] = i
			tally = append(tally, TallyEntry{Username: record.Target})
		}
		tally[i].Votes++
	}
	mostVoted := ""
	best := 0
	for _, entry := range tally {
		if entry.Votes > best {
			best = entry.Votes
			mostVoted = entry.Username
		}
	}
	return tally, mostVoted
}
