package nakama_client

import (
	"context"
	"encoding/json"
	"fmt"
)

type LeaderboardRecord struct {
	LeaderboardID string      `json:"leaderboard_id"`
	OwnerID       string      `json:"owner_id"`
	Username      string      `json:"username"`
	Score         json.Number `json:"score"`
	Rank          json.Number `json:"rank"`
}

type LeaderboardResponse struct {
	Records    []LeaderboardRecord `json:"records"`
	NextCursor string              `json:"next_cursor"`
}

// ListLeaderboard returns the top records of a leaderboard ordered by rank
func (c *NakamaClient) ListLeaderboard(ctx context.Context, session *Session, leaderboardID string, limit int) ([]LeaderboardRecord, error) {
	endpoint := fmt.Sprintf("%s%s?limit=%d", LeaderboardEndpoint, leaderboardID, limit)
	body, err := c.Get(ctx, endpoint, bearer(session))
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	var response LeaderboardResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	return response.Records, nil
}
