package bingo_api_client

const (
	// Base URL
	DefaultBaseURL = "http://localhost:8000/api"

	// Game room endpoints
	LightweightStatusEndpoint = "/lightweight-status/"
	PollEndpoint              = "/poll/"
	AvailableCardsEndpoint    = "/available-cards/"
	PlayerCountEndpoint       = "/player-count/"
	SelectCardEndpointFmt     = "/rounds/%d/select_card/"
	DeselectCardEndpointFmt   = "/rounds/%d/deselect_card/"

	// Game engine endpoints
	EngineStatusEndpoint = "/game-engine/status/"
	EngineStartEndpoint  = "/game-engine/start/"
	EngineStopEndpoint   = "/game-engine/stop/"
	EngineTickEndpoint   = "/game-engine/tick/"

	// Query params
	LastPollParam = "last_poll"
)
