package game

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"spy-game/internal/db"
)

func TestJoinBroadcastsRosterInJoinOrder(t *testing.T) {
	f := newFixture(t)
	roomID, ids := f.seedRoom(t, "alice", "bob", "carol")

	f.joinAll(t, roomID, "alice", "bob", "carol")

	rosters := f.notify.ofType("conn-alice", EventRosterUpdated)
	if len(rosters) != 3 {
		t.Fatalf("expected alice to see 3 roster updates, got %d", len(rosters))
	}
	last := rosters[2].Data.([]RosterEntry)
	if got := usernamesOf(last); !reflect.DeepEqual(got, []string{"alice", "bob", "carol"}) {
		t.Fatalf("expected join order roster, got %v", got)
	}
	if last[1].ID != ids["bob"] {
		t.Fatalf("expected roster id to be the user id, got %q", last[1].ID)
	}
	for _, conn := range []string{"conn-bob", "conn-carol"} {
		msgs := f.notify.ofType(conn, EventRosterUpdated)
		if !reflect.DeepEqual(msgs[len(msgs)-1].Data, last) {
			t.Fatalf("expected %s to receive the same roster", conn)
		}
	}
}

func TestJoinSendsRoomJoinedToJoinerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.store.CreateCategory(ctx, "Animals", []string{"lion", "owl"}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	room, owner, err := f.store.CreateRoomWithOwner(ctx, "alice", nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := f.store.CreateUser(ctx, "bob", room.ID); err != nil {
		t.Fatalf("create user: %v", err)
	}

	f.joinAll(t, room.ID, "alice", "bob")

	joined := f.notify.ofType("conn-bob", EventRoomJoined)
	if len(joined) != 1 {
		t.Fatalf("expected one room-joined for bob, got %d", len(joined))
	}
	payload := joined[0].Data.(JoinedPayload)
	if payload.IsOwner {
		t.Fatalf("expected bob not to be the owner")
	}
	if payload.OwnerUsername != owner.Username {
		t.Fatalf("expected owner %q, got %q", owner.Username, payload.OwnerUsername)
	}
	if len(payload.Categories) != 1 || len(payload.Categories[0].Words) != 2 {
		t.Fatalf("expected category list in room-joined, got %#v", payload.Categories)
	}
	aliceJoined := f.notify.ofType("conn-alice", EventRoomJoined)
	if len(aliceJoined) != 1 || !aliceJoined[0].Data.(JoinedPayload).IsOwner {
		t.Fatalf("expected alice to be told she owns the room")
	}
}

func TestJoinRejectsDuplicateUsernameWithoutMutation(t *testing.T) {
	f := newFixture(t)
	roomID, _ := f.seedRoom(t, "alice")
	f.joinAll(t, roomID, "alice")
	f.notify.reset()

	_, err := f.sup.Join(context.Background(), "conn-other", roomID, "ALICE")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation kind, got %s", KindOf(err))
	}
	roster, _ := f.sup.Roster(roomID)
	if len(roster) != 1 {
		t.Fatalf("expected roster unchanged, got %d participants", len(roster))
	}
	if n := f.notify.countType(EventRosterUpdated); n != 0 {
		t.Fatalf("expected no roster broadcast, got %d", n)
	}
}

func TestJoinValidation(t *testing.T) {
	f := newFixture(t, WithMaxUsernameLength(5))
	roomID, _ := f.seedRoom(t, "alice")
	ctx := context.Background()

	cases := []struct {
		name     string
		connID   string
		roomID   string
		username string
		want     error
	}{
		{name: "missing connection", roomID: roomID, username: "alice", want: ErrConnectionRequired},
		{name: "missing room", connID: "c1", roomID: "  ", username: "alice", want: ErrRoomIDRequired},
		{name: "missing username", connID: "c1", roomID: roomID, username: " ", want: ErrUsernameRequired},
		{name: "long username", connID: "c1", roomID: roomID, username: "alexandra", want: ErrUsernameTooLong},
		{name: "unknown room", connID: "c1", roomID: "ZZZZ", username: "alice", want: ErrRoomNotFound},
		{name: "unregistered user", connID: "c1", roomID: roomID, username: "mallo", want: ErrUnknownUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.sup.Join(ctx, tc.connID, tc.roomID, tc.username)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if f.sup.RoomCount() != 0 {
		t.Fatalf("expected no room records after rejected joins")
	}
}

func TestJoinNormalizesRoomCode(t *testing.T) {
	f := newFixture(t)
	roomID, _ := f.seedRoom(t, "alice")

	if _, err := f.sup.Join(context.Background(), "conn-alice", " "+strings.ToLower(roomID)+" ", "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if !f.sup.HasRoom(roomID) {
		t.Fatalf("expected room %s to be live", roomID)
	}
}

func TestJoinSameRoomTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	roomID, _ := f.seedRoom(t, "alice", "bob")
	f.joinAll(t, roomID, "alice")

	_, err := f.sup.Join(context.Background(), "conn-alice", roomID, "bob")
	if !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}
}

func TestJoinAnotherRoomLeavesThePreviousOne(t *testing.T) {
	f := newFixture(t)
	first, _ := f.seedRoom(t, "alice", "bob")
	second, _ := f.seedRoom(t, "alice")
	f.joinAll(t, first, "alice", "bob")

	if _, err := f.sup.Join(context.Background(), "conn-alice", second, "alice"); err != nil {
		t.Fatalf("join second room: %v", err)
	}
	roster, ok := f.sup.Roster(first)
	if !ok || len(roster) != 1 || roster[0].Username != "bob" {
		t.Fatalf("expected only bob left in the first room, got %#v", roster)
	}
	roster, _ = f.sup.Roster(second)
	if len(roster) != 1 || roster[0].ConnID != "conn-alice" {
		t.Fatalf("expected alice in the second room, got %#v", roster)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	roomID, _ := f.seedRoom(t, "alice", "bob")
	f.joinAll(t, roomID, "alice", "bob")

	roster := f.sup.Leave("", roomID, "Bob")
	if len(roster) != 1 || roster[0].Username != "alice" {
		t.Fatalf("expected alice only after bob leaves, got %#v", roster)
	}
	f.notify.reset()

	roster = f.sup.Leave("", roomID, "bob")
	if len(roster) != 1 {
		t.Fatalf("expected roster unchanged, got %#v", roster)
	}
	if n := f.notify.countType(EventRosterUpdated); n != 0 {
		t.Fatalf("expected no broadcast for a repeated leave, got %d", n)
	}
	if got := f.sup.Leave("conn-x", "NOPE", "x"); got != nil {
		t.Fatalf("expected nil roster for unknown room, got %#v", got)
	}
}

func TestUpdateCategoriesRelaysPayload(t *testing.T) {
	f := newFixture(t)
	roomID, _ := f.seedRoom(t, "alice", "bob")
	f.joinAll(t, roomID, "alice", "bob")

	payload := map[string]any{"selected": []int{1, 3}}
	if err := f.sup.UpdateCategories(roomID, payload); err != nil {
		t.Fatalf("update categories: %v", err)
	}
	for _, conn := range []string{"conn-alice", "conn-bob"} {
		msgs := f.notify.ofType(conn, EventCategoriesUpdated)
		if len(msgs) != 1 || !reflect.DeepEqual(msgs[0].Data, payload) {
			t.Fatalf("expected %s to receive the payload as-is, got %#v", conn, msgs)
		}
	}
	if err := f.sup.UpdateCategories("ZZZZ", payload); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestJoinStoreFailureLeavesRosterUnchanged(t *testing.T) {
	store := db.NewMemoryStore()
	dir := &failingDirectory{MemoryStore: store}
	f := newFixtureWithDirectory(t, store, dir)
	roomID, _ := f.seedRoom(t, "alice", "bob")
	otherID, _ := f.seedRoom(t, "carol")
	f.joinAll(t, roomID, "alice")
	f.notify.reset()
	dir.setFailLookups(true)

	_, err := f.sup.Join(context.Background(), "conn-bob", roomID, "bob")
	if !errors.Is(err, ErrDependencyFailure) {
		t.Fatalf("expected ErrDependencyFailure, got %v", err)
	}
	if KindOf(err) != KindDependency {
		t.Fatalf("expected dependency kind, got %s", KindOf(err))
	}
	roster, _ := f.sup.Roster(roomID)
	if len(roster) != 1 || roster[0].Username != "alice" {
		t.Fatalf("expected roster unchanged, got %#v", roster)
	}
	if n := f.notify.countType(EventRosterUpdated); n != 0 {
		t.Fatalf("expected no broadcast, got %d", n)
	}
	if _, err := f.sup.Join(context.Background(), "conn-carol", otherID, "carol"); !errors.Is(err, ErrDependencyFailure) {
		t.Fatalf("expected ErrDependencyFailure, got %v", err)
	}
	if f.sup.HasRoom(otherID) {
		t.Fatalf("expected no room opened on a failed lookup")
	}

	dir.setFailLookups(false)
	if _, err := f.sup.Join(context.Background(), "conn-bob", roomID, "bob"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestJoinCollapsesUsernameSpacing(t *testing.T) {
	f := newFixture(t)
	roomID, _ := f.seedRoom(t, "ann lee")

	roster, err := f.sup.Join(context.Background(), "c1", roomID, "  ann   lee ")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(roster) != 1 || roster[0].Username != "ann lee" {
		t.Fatalf("expected the registered spelling, got %#v", roster)
	}
}
