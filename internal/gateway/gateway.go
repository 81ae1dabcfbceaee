// Package gateway accepts WebSocket connections, gives each one a
// process-unique id, and routes decoded frames to the registry and rooms.
// Request outcomes go back as unicast frames on the same connection; room
// broadcasts arrive through a per-connection outbox channel that the room
// owns and closes.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harsh-dexter/poll-pulse/internal/poll"
	"github.com/harsh-dexter/poll-pulse/internal/registry"
	"github.com/harsh-dexter/poll-pulse/internal/room"
	"github.com/harsh-dexter/poll-pulse/pkg/types"
)

const writeTimeout = 3 * time.Second

type Gateway struct {
	reg *registry.Registry
	log *zap.Logger

	// roomByConn remembers which room a connection joined so an abrupt close
	// can be turned into a leave. Set at join, cleared at disconnect.
	mu         sync.Mutex
	roomByConn map[string]string
}

func New(reg *registry.Registry, log *zap.Logger) *Gateway {
	return &Gateway{
		reg:        reg,
		log:        log,
		roomByConn: make(map[string]string),
	}
}

func (g *Gateway) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // the browser client is served from another origin
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		g.log.Info("client connected", zap.String("conn", connID))

		writeCtx, writeCancel := context.WithCancel(context.Background())
		defer writeCancel()

		defer g.disconnect(connID)

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				g.log.Info("client disconnected", zap.String("conn", connID))
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				g.send(r.Context(), conn, errorFrame("Invalid JSON message format."))
				continue
			}

			switch cm.Type {
			case types.EvtCreateRoom:
				g.handleCreateRoom(r.Context(), conn, cm.Payload)
			case types.EvtJoinRoom:
				g.handleJoinRoom(r.Context(), writeCtx, conn, connID, cm.Payload)
			case types.EvtCastVote:
				g.handleCastVote(r.Context(), conn, connID, cm.Payload)
			default:
				g.send(r.Context(), conn, errorFrame(fmt.Sprintf("Unknown message type: %s", cm.Type)))
			}
		}
	}
}

func (g *Gateway) handleCreateRoom(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) {
	var p types.CreateRoomPayload
	if len(payload) > 0 {
		// Payload is optional for create-room; a custom question is the only field.
		_ = json.Unmarshal(payload, &p)
	}

	rm := g.reg.Create(p.CustomQuestion)
	if rm == nil {
		return // registry shutting down; connection is about to die anyway
	}
	view, err := rm.Snapshot()
	if err != nil {
		return
	}
	// The creator is not a participant yet; the client follows with join-room.
	g.send(ctx, conn, types.ServerMessage{
		Type: types.EvtRoomCreated,
		Payload: types.RoomCreatedPayload{
			RoomCode:      view.State.Code,
			Question:      view.State.Question,
			VoteCounts:    view.State.Tally,
			RemainingTime: view.State.Remaining,
			VotingEnded:   view.State.Phase == poll.PhaseClosed,
		},
	})
}

func (g *Gateway) handleJoinRoom(ctx, writeCtx context.Context, conn *websocket.Conn, connID string, payload json.RawMessage) {
	var p types.JoinRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RoomCode == "" || p.Username == "" {
		g.send(ctx, conn, unicast(types.EvtJoinError, "Room code and username are required."))
		return
	}

	rm, ok := g.reg.Get(p.RoomCode)
	if !ok {
		g.send(ctx, conn, unicast(types.EvtJoinError, "Room not found."))
		return
	}

	// A participant is in one room at a time; switching rooms leaves the old one.
	prev, hadPrev := g.getRoom(connID)
	if hadPrev && prev != p.RoomCode {
		if prevRm, found := g.reg.Get(prev); found {
			prevRm.Leave(connID)
		}
	}

	// Fresh outbox per join. The room owns it from here: broadcasts come
	// through it and the room closes it on leave or teardown, which is what
	// stops the writer goroutine.
	outbox := make(chan types.ServerMessage, 16)
	go func() {
		for msg := range outbox {
			g.send(writeCtx, conn, msg)
		}
	}()

	g.setRoom(connID, p.RoomCode)
	snap, err := rm.Join(connID, p.Username, outbox)
	if err != nil {
		// A failed rejoin leaves an earlier membership in this room intact;
		// anything else means the connection is in no room at all now.
		if !hadPrev || prev != p.RoomCode {
			g.clearRoom(connID)
		}
		close(outbox) // room never registered it
		switch {
		case errors.Is(err, poll.ErrVotingClosed):
			g.send(ctx, conn, unicast(types.EvtJoinError, "Voting has already ended for this room."))
		case errors.Is(err, room.ErrClosed):
			g.send(ctx, conn, unicast(types.EvtJoinError, "Room not found."))
		default:
			g.send(ctx, conn, unicast(types.EvtJoinError, "Failed to join room."))
		}
		return
	}

	users := make([]types.RoomUser, 0, len(snap.Participants))
	for _, u := range snap.ParticipantList() {
		users = append(users, types.RoomUser{ID: u.ID, Name: u.Name, HasVoted: u.HasVoted})
	}
	g.send(ctx, conn, types.ServerMessage{
		Type: types.EvtJoinSuccess,
		Payload: types.JoinSuccessPayload{
			RoomCode:      snap.Code,
			Question:      snap.Question,
			VoteCounts:    snap.Tally,
			RemainingTime: snap.Remaining,
			VotingEnded:   snap.Phase == poll.PhaseClosed,
			Users:         users,
		},
	})
}

func (g *Gateway) handleCastVote(ctx context.Context, conn *websocket.Conn, connID string, payload json.RawMessage) {
	var p types.CastVotePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RoomCode == "" || p.VoteOption == "" {
		g.send(ctx, conn, unicast(types.EvtVoteError, "Room code and vote option are required."))
		return
	}

	rm, ok := g.reg.Get(p.RoomCode)
	if !ok {
		g.send(ctx, conn, unicast(types.EvtVoteError, "Room not found."))
		return
	}

	switch err := rm.CastVote(connID, p.VoteOption); {
	case err == nil:
		g.send(ctx, conn, unicast(types.EvtVoteSuccess, "Vote recorded."))
	case errors.Is(err, poll.ErrVotingClosed):
		g.send(ctx, conn, unicast(types.EvtVoteError, "Voting has ended."))
	case errors.Is(err, poll.ErrUnknownParticipant):
		g.send(ctx, conn, unicast(types.EvtVoteError, "User not found in this room. Please rejoin."))
	case errors.Is(err, poll.ErrAlreadyVoted):
		g.send(ctx, conn, unicast(types.EvtVoteError, "You have already voted."))
	case errors.Is(err, poll.ErrInvalidOption):
		g.send(ctx, conn, unicast(types.EvtVoteError, "Failed to cast vote. Invalid option or already voted."))
	case errors.Is(err, room.ErrClosed):
		g.send(ctx, conn, unicast(types.EvtVoteError, "Room not found."))
	default:
		g.send(ctx, conn, unicast(types.EvtVoteError, "Failed to cast vote."))
	}
}

// disconnect turns an abrupt close into a leave for whatever room the
// connection last joined.
func (g *Gateway) disconnect(connID string) {
	g.mu.Lock()
	code, ok := g.roomByConn[connID]
	delete(g.roomByConn, connID)
	g.mu.Unlock()
	if !ok {
		return
	}
	if rm, found := g.reg.Get(code); found {
		rm.Leave(connID)
	}
}

func (g *Gateway) setRoom(connID, code string) {
	g.mu.Lock()
	g.roomByConn[connID] = code
	g.mu.Unlock()
}

func (g *Gateway) getRoom(connID string) (string, bool) {
	g.mu.Lock()
	code, ok := g.roomByConn[connID]
	g.mu.Unlock()
	return code, ok
}

func (g *Gateway) clearRoom(connID string) {
	g.mu.Lock()
	delete(g.roomByConn, connID)
	g.mu.Unlock()
}

// send is fire-and-forget: a write to an already-closing peer just fails and
// the read loop notices the close on its own.
func (g *Gateway) send(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		g.log.Error("marshal outbound frame", zap.Error(err))
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func unicast(eventType, message string) types.ServerMessage {
	return types.ServerMessage{Type: eventType, Payload: types.MessagePayload{Message: message}}
}

func errorFrame(message string) types.ServerMessage {
	return unicast(types.EvtError, message)
}
