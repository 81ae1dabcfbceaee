// Package registry owns the map from room code to live room. A single
// goroutine serializes map access, so a code can never be handed out twice
// and a create can never race a teardown; everything inside a room is the
// room's own business.
package registry

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/harsh-dexter/poll-pulse/internal/config"
	"github.com/harsh-dexter/poll-pulse/internal/poll"
	"github.com/harsh-dexter/poll-pulse/internal/room"
)

type Msg interface{ isRegistryMsg() }

type CreateRoom struct {
	Question string
	Reply    chan *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct{ Code string }

type ShutdownRegistry struct{}

func (CreateRoom) isRegistryMsg()       {}
func (GetRoom) isRegistryMsg()          {}
func (RemoveRoom) isRegistryMsg()       {}
func (ShutdownRegistry) isRegistryMsg() {}

type Registry struct {
	inbox  chan Msg
	rooms  map[string]*room.Room
	cfg    *config.Config
	clock  clockwork.Clock
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, cfg *config.Config, clock clockwork.Clock, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:  make(chan Msg, 64),
		rooms:  make(map[string]*room.Room),
		cfg:    cfg,
		clock:  clock,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- r.createRoom(msg.Question)

			case GetRoom:
				msg.Reply <- r.rooms[msg.Code] // may be nil

			case RemoveRoom:
				delete(r.rooms, msg.Code)

			case ShutdownRegistry:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Registry) createRoom(question string) *room.Room {
	var code string
	for {
		code = GenerateCode()
		if _, taken := r.rooms[code]; !taken {
			break
		}
		r.log.Info("collision on room code, regenerating", zap.String("code", code))
	}

	if question == "" {
		question = r.cfg.DefaultQuestion
	}

	st := poll.NewState(code, question, r.cfg.DefaultOptions, r.cfg.VoteSeconds)
	rm := room.New(r.ctx, st, room.Options{
		Clock:        r.clock,
		TickInterval: time.Second,
		Grace:        r.cfg.EmptyRoomGrace,
		OnDestroy: func(code string) {
			select {
			case r.inbox <- RemoveRoom{Code: code}:
			case <-r.ctx.Done():
			}
		},
		Log: r.log,
	})
	r.rooms[code] = rm
	r.log.Info("room created", zap.String("code", code), zap.String("question", question))
	return rm
}

func (r *Registry) shutdown() {
	for code, rm := range r.rooms {
		select {
		case rm.Inbox() <- room.Shutdown{}:
		default:
		}
		delete(r.rooms, code)
	}
	r.cancel()
}

// Create makes a new room, generating a fresh collision-checked code. An
// empty question falls back to the configured default. It only returns nil
// once the registry itself is shutting down.
func (r *Registry) Create(question string) *room.Room {
	reply := make(chan *room.Room, 1)
	select {
	case r.inbox <- CreateRoom{Question: question, Reply: reply}:
	case <-r.ctx.Done():
		return nil
	}
	select {
	case rm := <-reply:
		return rm
	case <-r.ctx.Done():
		return nil
	}
}

func (r *Registry) Get(code string) (*room.Room, bool) {
	reply := make(chan *room.Room, 1)
	select {
	case r.inbox <- GetRoom{Code: code, Reply: reply}:
	case <-r.ctx.Done():
		return nil, false
	}
	select {
	case rm := <-reply:
		return rm, rm != nil
	case <-r.ctx.Done():
		return nil, false
	}
}

// Close tears down every room and stops the registry goroutine.
func (r *Registry) Close() {
	select {
	case r.inbox <- ShutdownRegistry{}:
	case <-r.ctx.Done():
	}
}
