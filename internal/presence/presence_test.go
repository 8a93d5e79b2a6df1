package presence

import (
	"testing"
	"time"

	"heartline/client/internal/wire"
)

func TestOnlineCountIsLastReceived(t *testing.T) {
	agg := NewAggregator()
	agg.ApplyUserCount(wire.UserCountPayload{Count: 4})
	agg.ApplyUserCount(wire.UserCountPayload{Count: 2})
	if got := agg.OnlineCount(); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestParticipantAccounting(t *testing.T) {
	agg := NewAggregator()
	agg.ApplyUserJoined(wire.PresencePayload{RoomID: "r", UserID: 1, Nickname: "a"})
	agg.ApplyUserJoined(wire.PresencePayload{RoomID: "r", UserID: 2, Nickname: "b"})
	agg.ApplyUserJoined(wire.PresencePayload{RoomID: "r", UserID: 3, Nickname: "c"})
	agg.ApplyUserLeft(wire.PresencePayload{RoomID: "r", UserID: 2})

	got := agg.Participants("r")
	if len(got) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(got))
	}
	if got[0].UserID != 1 || got[1].UserID != 3 {
		t.Fatalf("unexpected participants %+v", got)
	}
}

func TestDuplicateJoinIsIgnored(t *testing.T) {
	agg := NewAggregator()
	agg.ApplyUserJoined(wire.PresencePayload{RoomID: "r", UserID: 1})
	agg.ApplyUserJoined(wire.PresencePayload{RoomID: "r", UserID: 1})
	if got := agg.Participants("r"); len(got) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(got))
	}
}

func TestLeaveUnknownUserIsNoOp(t *testing.T) {
	agg := NewAggregator()
	agg.ApplyUserLeft(wire.PresencePayload{RoomID: "r", UserID: 99})
	if got := agg.Participants("r"); len(got) != 0 {
		t.Fatalf("expected empty room, got %d", len(got))
	}
}

func TestTypingStartStop(t *testing.T) {
	agg := NewAggregator()
	agg.ApplyTypingStart(wire.TypingPayload{RoomID: "r", UserID: 1, Nickname: "a"})
	agg.ApplyTypingStart(wire.TypingPayload{RoomID: "r", UserID: 1, Nickname: "a"})
	agg.ApplyTypingStart(wire.TypingPayload{RoomID: "r", UserID: 2, Nickname: "b"})

	if got := agg.TypingUsers(); len(got) != 2 {
		t.Fatalf("expected 2 typists, got %d", len(got))
	}

	agg.ApplyTypingStop(wire.TypingPayload{UserID: 1})
	got := agg.TypingUsers()
	if len(got) != 1 || got[0].UserID != 2 {
		t.Fatalf("unexpected typists %+v", got)
	}

	// Stop without a matching start is tolerated.
	agg.ApplyTypingStop(wire.TypingPayload{UserID: 5})
}

func TestTypingEntryExpires(t *testing.T) {
	agg := NewAggregator()
	agg.SetTypingTTL(30 * time.Millisecond)
	agg.ApplyTypingStart(wire.TypingPayload{RoomID: "r", UserID: 1})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(agg.TypingUsers()) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("typing entry never expired")
}
