package topics

const (
	// Partidas
	MatchUpdates = "match_updates"
	MatchSettled = "match_settled"

	// Apostas
	WagerPlaced    = "wager_placed"
	WagerSettled   = "wager_settled"
	WagerCashedOut = "wager_cashed_out"

	// DLQs
	WagerEventsDLQ = "wager_events_dlq"
)
