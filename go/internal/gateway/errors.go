package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentityInUse is returned when the requested display name already
	// belongs to another device
	ErrIdentityInUse = errors.New("identity already in use")
	// ErrCredentialsRejected is returned when the server refuses the device
	// credentials outright
	ErrCredentialsRejected = errors.New("credentials rejected")
	// ErrSessionStale is returned when the server refuses a channel for the
	// session. Re-authenticate and retry.
	ErrSessionStale = errors.New("session is stale")
	// ErrChannelClosed is returned for operations on a channel that is not open
	ErrChannelClosed = errors.New("channel is closed")
)

// AuthError is returned when a session cannot be obtained
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authenticate %q: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ChannelError is returned when the realtime channel is unavailable
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// SendError is returned when a single intent could not be transmitted
type SendError struct {
	MatchID string
	OpCode  OpCode
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send opcode %d to match %s: %v", e.OpCode, e.MatchID, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ServerError is an error envelope returned by the realtime API
type ServerError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}
