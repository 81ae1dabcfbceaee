// Package room runs one goroutine per voting room. Every mutation — joins,
// votes, countdown ticks, the empty-room grace deadline — flows through the
// room's inbox, so there is never more than one in-flight mutation per room
// and rooms never block each other.
package room

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/harsh-dexter/poll-pulse/internal/poll"
	"github.com/harsh-dexter/poll-pulse/pkg/types"
)

// ErrClosed is returned by the sync wrappers when the room has already been
// torn down. Callers treat it the same as an unknown room code.
var ErrClosed = errors.New("room closed")

type Msg interface{ isRoomMsg() }

type Join struct {
	ConnID string
	Name   string
	Outbox chan types.ServerMessage
	Reply  chan JoinResult
}

func (Join) isRoomMsg() {}

type JoinResult struct {
	Snapshot poll.State
	Err      error
}

type CastVote struct {
	ConnID string
	Option string
	Reply  chan error
}

func (CastVote) isRoomMsg() {}

type Leave struct{ ConnID string }

func (Leave) isRoomMsg() {}

type GetState struct{ Reply chan View }

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// tick comes from the countdown goroutine, graceExpired from the empty-room
// deadline. Both are internal: only this package may schedule them.
type tick struct{}

func (tick) isRoomMsg() {}

type graceExpired struct{ gen int }

func (graceExpired) isRoomMsg() {}

// View reflects internal state without data races; used by tests and the
// HTTP snapshot path.
type View struct {
	State          poll.State
	NumSubscribers int
}

type Options struct {
	Clock        clockwork.Clock
	TickInterval time.Duration
	Grace        time.Duration
	// OnDestroy runs once, from the room goroutine, when the grace deadline
	// expires with nobody inside. The registry uses it to drop its map entry.
	OnDestroy func(code string)
	Log       *zap.Logger
}

type Room struct {
	code  string
	inbox chan Msg
	state poll.State
	subs  map[string]chan types.ServerMessage

	clock        clockwork.Clock
	tickInterval time.Duration
	grace        time.Duration
	graceTimer   clockwork.Timer
	graceGen     int
	countdown    *countdown
	onDestroy    func(code string)

	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, initial poll.State, opts Options) *Room {
	ctx, cancel := context.WithCancel(parent)

	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	r := &Room{
		code:         initial.Code,
		inbox:        make(chan Msg, 64),
		state:        initial,
		subs:         make(map[string]chan types.ServerMessage),
		clock:        opts.Clock,
		tickInterval: opts.TickInterval,
		grace:        opts.Grace,
		onDestroy:    opts.OnDestroy,
		log:          opts.Log.With(zap.String("room", initial.Code)),
		ctx:          ctx,
		cancel:       cancel,
	}

	// A room with nobody inside must not outlive the grace period, and a
	// fresh room has nobody inside. First join disarms this.
	r.armGrace()

	go r.loop()
	return r
}

// Expose the inbox so tests can drive the loop directly.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) Code() string { return r.code }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.teardown(false)
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)

			case CastVote:
				r.handleVote(msg)

			case Leave:
				r.handleLeave(msg)

			case tick:
				r.handleTick()

			case graceExpired:
				if msg.gen != r.graceGen {
					break // disarmed or re-armed since this fired
				}
				if len(r.state.Participants) > 0 {
					break
				}
				r.log.Info("room destroyed after grace period")
				r.teardown(true)
				return

			case GetState:
				msg.Reply <- View{State: r.state, NumSubscribers: len(r.subs)}

			case Shutdown:
				r.teardown(false)
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	events, newState, err := poll.Apply(r.state, poll.Command{
		Type:          poll.CmdJoin,
		ParticipantID: msg.ConnID,
		Name:          msg.Name,
	})
	if err != nil {
		msg.Reply <- JoinResult{Err: err}
		return
	}
	r.state = newState

	if old, ok := r.subs[msg.ConnID]; ok && old != msg.Outbox {
		close(old)
	}
	r.subs[msg.ConnID] = msg.Outbox
	r.disarmGrace()

	for _, ev := range events {
		switch ev.Type {
		case poll.EvtParticipantJoined:
			r.log.Info("participant joined",
				zap.String("user", msg.ConnID),
				zap.String("name", msg.Name),
				zap.Int("total", len(r.state.Participants)))
			r.broadcastExcept(msg.ConnID, types.ServerMessage{
				Type:    types.EvtUserJoined,
				Payload: types.UserPresencePayload{UserID: ev.ParticipantID, Username: ev.Name},
			})
		case poll.EvtParticipantRejoined:
			r.log.Info("participant rejoined", zap.String("user", msg.ConnID))
		case poll.EvtCountdownStart:
			r.startCountdown()
		}
	}

	msg.Reply <- JoinResult{Snapshot: r.state}
}

func (r *Room) handleVote(msg CastVote) {
	events, newState, err := poll.Apply(r.state, poll.Command{
		Type:          poll.CmdVote,
		ParticipantID: msg.ConnID,
		Option:        msg.Option,
	})
	if err != nil {
		msg.Reply <- err
		return
	}
	r.state = newState
	msg.Reply <- nil

	for _, ev := range events {
		if ev.Type == poll.EvtVoteAccepted {
			r.log.Info("vote cast",
				zap.String("user", ev.ParticipantID),
				zap.String("option", ev.Option))
			r.broadcast(types.ServerMessage{
				Type:    types.EvtVoteUpdate,
				Payload: types.VoteUpdatePayload{VoteCounts: r.state.Tally},
			})
		}
	}
}

func (r *Room) handleLeave(msg Leave) {
	events, newState, _ := poll.Apply(r.state, poll.Command{
		Type:          poll.CmdLeave,
		ParticipantID: msg.ConnID,
	})
	r.state = newState

	if ch, ok := r.subs[msg.ConnID]; ok {
		delete(r.subs, msg.ConnID)
		close(ch)
	}

	for _, ev := range events {
		switch ev.Type {
		case poll.EvtParticipantLeft:
			r.log.Info("participant left",
				zap.String("user", ev.ParticipantID),
				zap.Int("remaining", len(r.state.Participants)))
			r.broadcast(types.ServerMessage{
				Type:    types.EvtUserLeft,
				Payload: types.UserPresencePayload{UserID: ev.ParticipantID, Username: ev.Name},
			})
		case poll.EvtRoomEmptied:
			r.armGrace()
		}
	}
}

func (r *Room) handleTick() {
	events, newState, _ := poll.Apply(r.state, poll.Command{Type: poll.CmdTick})
	r.state = newState

	for _, ev := range events {
		switch ev.Type {
		case poll.EvtTick:
			r.broadcast(types.ServerMessage{
				Type:    types.EvtTimerTick,
				Payload: types.TimerTickPayload{RemainingTime: ev.Remaining},
			})
		case poll.EvtVotingEnded:
			// Terminal for the scheduler; stopping twice later is a no-op.
			if r.countdown != nil {
				r.countdown.stop()
			}
			r.log.Info("voting ended")
			r.broadcast(types.ServerMessage{
				Type:    types.EvtVotingEnded,
				Payload: types.VotingEndedPayload{RoomCode: r.code, Message: "Voting has ended."},
			})
		}
	}
}

func (r *Room) startCountdown() {
	if r.countdown != nil {
		return
	}
	r.countdown = startCountdown(r.ctx, r.clock, r.tickInterval, r.inbox)
	r.log.Info("timer started", zap.Int("seconds", r.state.Remaining))
}

func (r *Room) armGrace() {
	r.graceGen++
	gen := r.graceGen
	if r.graceTimer != nil {
		r.graceTimer.Stop()
	}
	r.graceTimer = r.clock.AfterFunc(r.grace, func() {
		select {
		case r.inbox <- graceExpired{gen: gen}:
		case <-r.ctx.Done():
		}
	})
	r.log.Info("room empty, scheduling cleanup", zap.Duration("grace", r.grace))
}

func (r *Room) disarmGrace() {
	if r.graceTimer == nil {
		return
	}
	r.graceTimer.Stop()
	r.graceTimer = nil
	r.graceGen++
	r.log.Info("cleanup cancelled, participant joined")
}

func (r *Room) teardown(notify bool) {
	if r.countdown != nil {
		r.countdown.stop()
	}
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	if notify && r.onDestroy != nil {
		r.onDestroy(r.code)
	}
	r.cancel()
}

func (r *Room) broadcast(msg types.ServerMessage) {
	r.broadcastExcept("", msg)
}

func (r *Room) broadcastExcept(excludeID string, msg types.ServerMessage) {
	for id, ch := range r.subs {
		if id == excludeID {
			continue
		}
		select {
		case ch <- msg:
		default:
			// Slow consumer; the frame is dropped, not the subscriber. The
			// gateway writer drains fast so this only happens under abuse.
			r.log.Warn("dropped frame for slow subscriber", zap.String("user", id))
		}
	}
}
