// Package poll is the pure state machine behind a voting room. It knows
// nothing about connections, timers or goroutines: the room actor feeds it
// commands and acts on the events it returns. Keeping it pure is what makes
// the per-room serialization in internal/room trivial to reason about.
package poll

import (
	"errors"
	"maps"
	"slices"
)

var ErrVotingClosed = errors.New("voting closed")
var ErrUnknownParticipant = errors.New("unknown participant")
var ErrAlreadyVoted = errors.New("already voted")
var ErrInvalidOption = errors.New("invalid option")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseOpen   Phase = "open"
	PhaseClosed Phase = "closed"
)

type Participant struct {
	ID       string
	Name     string
	HasVoted bool
}

// State is a value. Apply never mutates the maps it was given; it clones on
// write, so an old State (and any payload built from it) stays valid after
// later commands.
type State struct {
	Code         string
	Question     string
	Options      []string
	Tally        map[string]int
	Participants map[string]Participant
	Remaining    int
	Phase        Phase
	TimerStarted bool
}

func NewState(code, question string, options []string, seconds int) State {
	tally := make(map[string]int, len(options))
	for _, opt := range options {
		tally[opt] = 0
	}
	return State{
		Code:         code,
		Question:     question,
		Options:      slices.Clone(options),
		Tally:        tally,
		Participants: map[string]Participant{},
		Remaining:    seconds,
		Phase:        PhaseOpen,
	}
}

type CommandType string

const (
	CmdJoin  CommandType = "Join"
	CmdVote  CommandType = "Vote"
	CmdLeave CommandType = "Leave"
	CmdTick  CommandType = "Tick"
)

type Command struct {
	Type          CommandType
	ParticipantID string
	Name          string
	Option        string
}

type EventType string

const (
	EvtParticipantJoined   EventType = "ParticipantJoined"
	EvtParticipantRejoined EventType = "ParticipantRejoined"
	EvtCountdownStart      EventType = "CountdownStart"
	EvtVoteAccepted        EventType = "VoteAccepted"
	EvtParticipantLeft     EventType = "ParticipantLeft"
	EvtRoomEmptied         EventType = "RoomEmptied"
	EvtTick                EventType = "Tick"
	EvtVotingEnded         EventType = "VotingEnded"
)

type Event struct {
	Type          EventType
	ParticipantID string
	Name          string
	Option        string
	Remaining     int
}

// Apply runs one command against the state and returns the events the caller
// should fan out, plus the new state. On error the returned state is the
// input unchanged; a command either fully applies or not at all.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdJoin:
		if s.Phase == PhaseClosed {
			return nil, s, ErrVotingClosed
		}
		if _, ok := s.Participants[cmd.ParticipantID]; ok {
			// Reconnect. Keep the existing record, HasVoted included.
			return []Event{{Type: EvtParticipantRejoined, ParticipantID: cmd.ParticipantID, Name: cmd.Name}}, s, nil
		}
		newState := s
		newState.Participants = maps.Clone(s.Participants)
		newState.Participants[cmd.ParticipantID] = Participant{ID: cmd.ParticipantID, Name: cmd.Name}
		events := []Event{{Type: EvtParticipantJoined, ParticipantID: cmd.ParticipantID, Name: cmd.Name}}
		if !newState.TimerStarted {
			newState.TimerStarted = true
			events = append(events, Event{Type: EvtCountdownStart, Remaining: newState.Remaining})
		}
		return events, newState, nil

	case CmdVote:
		// Check order matters: the most specific rejection wins, so a closed
		// room answers "closed" even for a participant it has never seen.
		if s.Phase == PhaseClosed {
			return nil, s, ErrVotingClosed
		}
		p, ok := s.Participants[cmd.ParticipantID]
		if !ok {
			return nil, s, ErrUnknownParticipant
		}
		if p.HasVoted {
			return nil, s, ErrAlreadyVoted
		}
		if _, ok := s.Tally[cmd.Option]; !ok {
			return nil, s, ErrInvalidOption
		}
		newState := s
		newState.Tally = maps.Clone(s.Tally)
		newState.Tally[cmd.Option]++
		newState.Participants = maps.Clone(s.Participants)
		p.HasVoted = true
		newState.Participants[cmd.ParticipantID] = p
		return []Event{{Type: EvtVoteAccepted, ParticipantID: cmd.ParticipantID, Option: cmd.Option}}, newState, nil

	case CmdLeave:
		p, ok := s.Participants[cmd.ParticipantID]
		if !ok {
			// Already gone; leave is idempotent.
			return nil, s, nil
		}
		newState := s
		newState.Participants = maps.Clone(s.Participants)
		delete(newState.Participants, cmd.ParticipantID)
		events := []Event{{Type: EvtParticipantLeft, ParticipantID: p.ID, Name: p.Name}}
		if len(newState.Participants) == 0 {
			events = append(events, Event{Type: EvtRoomEmptied})
		}
		return events, newState, nil

	case CmdTick:
		if s.Phase == PhaseClosed {
			// Late fire after the countdown already ended.
			return nil, s, nil
		}
		newState := s
		newState.Remaining--
		events := []Event{{Type: EvtTick, Remaining: newState.Remaining}}
		if newState.Remaining <= 0 {
			newState.Phase = PhaseClosed
			events = append(events, Event{Type: EvtVotingEnded})
		}
		return events, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}
