package room

import (
	"github.com/harsh-dexter/poll-pulse/internal/poll"
	"github.com/harsh-dexter/poll-pulse/pkg/types"
)

// Sync wrappers over the inbox, for callers that want a plain call/return
// API. Each one bails out with ErrClosed if the room goroutine is gone, so a
// caller racing room destruction is never left hanging.

func (r *Room) Join(connID, name string, outbox chan types.ServerMessage) (poll.State, error) {
	reply := make(chan JoinResult, 1)
	select {
	case r.inbox <- Join{ConnID: connID, Name: name, Outbox: outbox, Reply: reply}:
	case <-r.ctx.Done():
		return poll.State{}, ErrClosed
	}
	select {
	case res := <-reply:
		return res.Snapshot, res.Err
	case <-r.ctx.Done():
		return poll.State{}, ErrClosed
	}
}

func (r *Room) CastVote(connID, option string) error {
	reply := make(chan error, 1)
	select {
	case r.inbox <- CastVote{ConnID: connID, Option: option, Reply: reply}:
	case <-r.ctx.Done():
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-r.ctx.Done():
		return ErrClosed
	}
}

func (r *Room) Leave(connID string) {
	select {
	case r.inbox <- Leave{ConnID: connID}:
	case <-r.ctx.Done():
	}
}

func (r *Room) Snapshot() (View, error) {
	reply := make(chan View, 1)
	select {
	case r.inbox <- GetState{Reply: reply}:
	case <-r.ctx.Done():
		return View{}, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.ctx.Done():
		return View{}, ErrClosed
	}
}
