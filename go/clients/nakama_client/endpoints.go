package nakama_client

const (
	// API Endpoints
	AuthenticateDeviceEndpoint = "/v2/account/authenticate/device"
	RPCEndpoint                = "/v2/rpc/"
	LeaderboardEndpoint        = "/v2/leaderboard/"
	SocketEndpoint             = "/ws"

	// RPC IDs registered by the match server
	FindMatchRPC = "find_match"

	// Leaderboards
	GlobalLeaderboardID = "tictactoe_global"

	// Defaults
	DefaultServerKey = "defaultkey"
	DefaultHost      = "127.0.0.1"
	DefaultPort      = 7350
)
