package types

import "encoding/json"

// Client -> Server
const (
	EvtCreateRoom = "create-room"
	EvtJoinRoom   = "join-room"
	EvtCastVote   = "cast-vote"
)

// Server -> Client
const (
	EvtRoomCreated = "room-created"
	EvtJoinSuccess = "join-success"
	EvtJoinError   = "join-error"
	EvtUserJoined  = "user-joined"
	EvtUserLeft    = "user-left"
	EvtVoteUpdate  = "vote-update"
	EvtVoteSuccess = "vote-success"
	EvtVoteError   = "vote-error"
	EvtTimerTick   = "timer-tick"
	EvtVotingEnded = "voting-ended"
	EvtError       = "error"
)

// ClientMessage is one inbound frame. Payload stays raw until the event type
// tells us which struct to decode it into.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type CreateRoomPayload struct {
	CustomQuestion string `json:"customQuestion,omitempty"`
}

type JoinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

type CastVotePayload struct {
	RoomCode   string `json:"roomCode"`
	VoteOption string `json:"voteOption"`
	Username   string `json:"username,omitempty"`
}

type RoomCreatedPayload struct {
	RoomCode      string         `json:"roomCode"`
	Question      string         `json:"question"`
	VoteCounts    map[string]int `json:"voteCounts"`
	RemainingTime int            `json:"remainingTime"`
	VotingEnded   bool           `json:"votingEnded"`
}

type RoomUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	HasVoted bool   `json:"hasVoted"`
}

type JoinSuccessPayload struct {
	RoomCode      string         `json:"roomCode"`
	Question      string         `json:"question"`
	VoteCounts    map[string]int `json:"voteCounts"`
	RemainingTime int            `json:"remainingTime"`
	VotingEnded   bool           `json:"votingEnded"`
	Users         []RoomUser     `json:"users"`
}

// UserPresencePayload is shared by user-joined and user-left.
type UserPresencePayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type VoteUpdatePayload struct {
	VoteCounts map[string]int `json:"voteCounts"`
}

type TimerTickPayload struct {
	RemainingTime int `json:"remainingTime"`
}

type VotingEndedPayload struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

// MessagePayload covers join-error, vote-error, vote-success and the generic
// error frame. Winner display is computed by the client from vote-update
// snapshots; the server only ever ships raw counts.
type MessagePayload struct {
	Message string `json:"message"`
}
