package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/harsh-dexter/poll-pulse/internal/config"
	"github.com/harsh-dexter/poll-pulse/internal/registry"
	"github.com/harsh-dexter/poll-pulse/pkg/types"
)

type frame struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		DefaultQuestion: "Cats vs Dogs?",
		DefaultOptions:  []string{"cats", "dogs"},
		VoteSeconds:     60,
		EmptyRoomGrace:  time.Minute,
	}
	reg := registry.New(ctx, cfg, clockwork.NewRealClock(), zap.NewNop())
	gw := New(reg, zap.NewNop())

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	data, err := json.Marshal(map[string]any{"type": eventType, "payload": payload})
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write %s: %v", eventType, err)
	}
}

// readUntil reads frames, skipping timer ticks, until one of the wanted
// types shows up. The countdown runs on the real clock here, so ticks can
// interleave with anything.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, wantTypes ...string) frame {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read while waiting for %v: %v", wantTypes, err)
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("bad frame %q: %v", data, err)
		}
		if f.Type == types.EvtTimerTick {
			continue
		}
		for _, want := range wantTypes {
			if f.Type == want {
				return f
			}
		}
		t.Fatalf("unexpected frame %q while waiting for %v", f.Type, wantTypes)
	}
}

func TestCreateJoinVoteFlow(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := dial(t, ctx, srv)

	send(t, ctx, alice, types.EvtCreateRoom, map[string]any{})
	created := readUntil(t, ctx, alice, types.EvtRoomCreated)
	code, _ := created.Payload["roomCode"].(string)
	if len(code) != 6 {
		t.Fatalf("bad room code %q", code)
	}
	if created.Payload["question"] != "Cats vs Dogs?" {
		t.Fatalf("unexpected question: %v", created.Payload["question"])
	}

	send(t, ctx, alice, types.EvtJoinRoom, map[string]any{"roomCode": code, "username": "alice"})
	joined := readUntil(t, ctx, alice, types.EvtJoinSuccess)
	if users := joined.Payload["users"].([]any); len(users) != 1 {
		t.Fatalf("want 1 user, got %v", users)
	}

	bob := dial(t, ctx, srv)
	send(t, ctx, bob, types.EvtJoinRoom, map[string]any{"roomCode": code, "username": "bob"})
	joined = readUntil(t, ctx, bob, types.EvtJoinSuccess)
	if users := joined.Payload["users"].([]any); len(users) != 2 {
		t.Fatalf("want 2 users, got %v", users)
	}

	notice := readUntil(t, ctx, alice, types.EvtUserJoined)
	if notice.Payload["username"] != "bob" {
		t.Fatalf("unexpected user-joined: %v", notice.Payload)
	}

	// vote-success (unicast) and vote-update (broadcast) race on the wire
	send(t, ctx, alice, types.EvtCastVote, map[string]any{"roomCode": code, "voteOption": "cats"})
	sawSuccess, sawUpdate := false, false
	for !sawSuccess || !sawUpdate {
		f := readUntil(t, ctx, alice, types.EvtVoteSuccess, types.EvtVoteUpdate)
		switch f.Type {
		case types.EvtVoteSuccess:
			sawSuccess = true
		case types.EvtVoteUpdate:
			sawUpdate = true
			counts := f.Payload["voteCounts"].(map[string]any)
			if counts["cats"].(float64) != 1 || counts["dogs"].(float64) != 0 {
				t.Fatalf("unexpected tally: %v", counts)
			}
		}
	}
	update := readUntil(t, ctx, bob, types.EvtVoteUpdate)
	if update.Payload["voteCounts"].(map[string]any)["cats"].(float64) != 1 {
		t.Fatalf("bob missed the tally update: %v", update.Payload)
	}

	// double vote
	send(t, ctx, alice, types.EvtCastVote, map[string]any{"roomCode": code, "voteOption": "dogs"})
	voteErr := readUntil(t, ctx, alice, types.EvtVoteError)
	if voteErr.Payload["message"] != "You have already voted." {
		t.Fatalf("unexpected vote-error: %v", voteErr.Payload)
	}

	// invalid option from bob
	send(t, ctx, bob, types.EvtCastVote, map[string]any{"roomCode": code, "voteOption": "birds"})
	voteErr = readUntil(t, ctx, bob, types.EvtVoteError)
	if voteErr.Payload["message"] != "Failed to cast vote. Invalid option or already voted." {
		t.Fatalf("unexpected vote-error: %v", voteErr.Payload)
	}

	// disconnect synthesizes a leave
	_ = bob.Close(websocket.StatusNormalClosure, "")
	left := readUntil(t, ctx, alice, types.EvtUserLeft)
	if left.Payload["username"] != "bob" {
		t.Fatalf("unexpected user-left: %v", left.Payload)
	}
}

func TestJoinErrors(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dial(t, ctx, srv)

	// unknown room code; and no room springs into existence as a side effect
	send(t, ctx, conn, types.EvtJoinRoom, map[string]any{"roomCode": "NOPE42", "username": "alice"})
	f := readUntil(t, ctx, conn, types.EvtJoinError)
	if f.Payload["message"] != "Room not found." {
		t.Fatalf("unexpected join-error: %v", f.Payload)
	}
	send(t, ctx, conn, types.EvtJoinRoom, map[string]any{"roomCode": "NOPE42", "username": "alice"})
	f = readUntil(t, ctx, conn, types.EvtJoinError)
	if f.Payload["message"] != "Room not found." {
		t.Fatalf("join attempt must not create the room: %v", f.Payload)
	}

	// missing fields
	send(t, ctx, conn, types.EvtJoinRoom, map[string]any{"roomCode": "ABC123"})
	f = readUntil(t, ctx, conn, types.EvtJoinError)
	if f.Payload["message"] != "Room code and username are required." {
		t.Fatalf("unexpected join-error: %v", f.Payload)
	}

	send(t, ctx, conn, types.EvtCastVote, map[string]any{"voteOption": "cats"})
	f = readUntil(t, ctx, conn, types.EvtVoteError)
	if f.Payload["message"] != "Room code and vote option are required." {
		t.Fatalf("unexpected vote-error: %v", f.Payload)
	}
}

func TestMalformedAndUnknownFrames(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dial(t, ctx, srv)

	if err := conn.Write(ctx, websocket.MessageText, []byte("not json at all")); err != nil {
		t.Fatal(err)
	}
	f := readUntil(t, ctx, conn, types.EvtError)
	if f.Payload["message"] != "Invalid JSON message format." {
		t.Fatalf("unexpected error frame: %v", f.Payload)
	}

	send(t, ctx, conn, "do-a-barrel-roll", map[string]any{})
	f = readUntil(t, ctx, conn, types.EvtError)
	if f.Payload["message"] != "Unknown message type: do-a-barrel-roll" {
		t.Fatalf("unexpected error frame: %v", f.Payload)
	}

	// the connection survives both rejections
	send(t, ctx, conn, types.EvtCreateRoom, map[string]any{"customQuestion": "Still alive?"})
	f = readUntil(t, ctx, conn, types.EvtRoomCreated)
	if f.Payload["question"] != "Still alive?" {
		t.Fatalf("unexpected room-created: %v", f.Payload)
	}
}

func TestVoteInUnknownRoom(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dial(t, ctx, srv)
	send(t, ctx, conn, types.EvtCastVote, map[string]any{"roomCode": "NOPE42", "voteOption": "cats"})
	f := readUntil(t, ctx, conn, types.EvtVoteError)
	if f.Payload["message"] != "Room not found." {
		t.Fatalf("unexpected vote-error: %v", f.Payload)
	}
}
