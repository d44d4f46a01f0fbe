package nakama_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoMatchAvailable is returned when matchmaking produced no match id
var ErrNoMatchAvailable = errors.New("no match available")

type rpcResponse struct {
	ID      string `json:"id"`
	Payload string `json:"payload"`
}

type findMatchRequest struct {
	AI bool `json:"ai"`
}

type findMatchResponse struct {
	MatchIDs []string `json:"matchIds"`
	MatchID  string   `json:"match_id"`
}

// RPC calls a server function. The payload is sent as a JSON string, which
// is what the server expects for non-HTTP-key calls.
func (c *NakamaClient) RPC(ctx context.Context, session *Session, id string, payload any) (string, error) {
	inner, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rpc payload: %w", err)
	}
	body, err := json.Marshal(string(inner))
	if err != nil {
		return "", fmt.Errorf("failed to marshal rpc body: %w", err)
	}

	resp, err := c.Post(ctx, RPCEndpoint+id, bytes.NewReader(body), bearer(session))
	if err != nil {
		return "", fmt.Errorf("failed to call rpc %s: %w", id, err)
	}

	var out rpcResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal rpc response: %w", err)
	}
	return out.Payload, nil
}

// FindMatch asks the server for a match, optionally against an automated
// opponent, and returns its id
func (c *NakamaClient) FindMatch(ctx context.Context, session *Session, ai bool) (string, error) {
	payload, err := c.RPC(ctx, session, FindMatchRPC, findMatchRequest{AI: ai})
	if err != nil {
		return "", err
	}

	var resp findMatchResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal find_match payload: %w, raw payload: %s", err, payload)
	}

	if len(resp.MatchIDs) > 0 && resp.MatchIDs[0] != "" {
		return resp.MatchIDs[0], nil
	}
	if resp.MatchID != "" {
		return resp.MatchID, nil
	}
	return "", ErrNoMatchAvailable
}
