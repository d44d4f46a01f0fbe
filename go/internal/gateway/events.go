package gateway

import (
	"bytes"
	"fmt"
	"strconv"
)

// OpCode identifies the kind of a match data message
type OpCode int64

const (
	OpCodeState    OpCode = 1 // authoritative snapshot, server to client
	OpCodeError    OpCode = 3 // intent rejected, server to client
	OpCodeMove     OpCode = 4
	OpCodeInviteAI OpCode = 7
)

// UnmarshalJSON accepts both 4 and "4"; the server encodes 64-bit integers
// as strings.
func (o *OpCode) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid op code %s: %w", b, err)
	}
	*o = OpCode(n)
	return nil
}

// Presence is a participant's session within a match
type Presence struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
	Node      string `json:"node,omitempty"`
}

// MatchData is a data message pushed for a match
type MatchData struct {
	MatchID  string    `json:"match_id"`
	Presence *Presence `json:"presence,omitempty"`
	OpCode   OpCode    `json:"op_code"`
	Data     []byte    `json:"data,omitempty"`
}

// MatchPresenceEvent reports participants joining or leaving a match
type MatchPresenceEvent struct {
	MatchID string     `json:"match_id"`
	Joins   []Presence `json:"joins,omitempty"`
	Leaves  []Presence `json:"leaves,omitempty"`
}

// JoinedMatch is the acknowledgment of a match join
type JoinedMatch struct {
	MatchID       string     `json:"match_id"`
	Authoritative bool       `json:"authoritative"`
	Label         string     `json:"label,omitempty"`
	Size          int        `json:"size"`
	Presences     []Presence `json:"presences,omitempty"`
	Self          *Presence  `json:"self,omitempty"`
}

type matchJoin struct {
	MatchID string `json:"match_id"`
}

type matchLeave struct {
	MatchID string `json:"match_id"`
}

type matchDataSend struct {
	MatchID  string `json:"match_id"`
	OpCode   OpCode `json:"op_code"`
	Data     []byte `json:"data,omitempty"`
	Reliable bool   `json:"reliable"`
}

// envelope is the realtime message frame in both directions
type envelope struct {
	Cid                string              `json:"cid,omitempty"`
	MatchJoin          *matchJoin          `json:"match_join,omitempty"`
	MatchLeave         *matchLeave         `json:"match_leave,omitempty"`
	MatchDataSend      *matchDataSend      `json:"match_data_send,omitempty"`
	Match              *JoinedMatch        `json:"match,omitempty"`
	MatchData          *MatchData          `json:"match_data,omitempty"`
	MatchPresenceEvent *MatchPresenceEvent `json:"match_presence_event,omitempty"`
	Error              *ServerError        `json:"error,omitempty"`
}
