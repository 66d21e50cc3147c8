package topics

const (
	// Resultados de partidas (feed externo ou live-service)
	FixtureResults = "fixture_results"

	// Apostas liquidadas pelo settlement-worker
	BetSettled = "bet_settled"

	// DLQs
	FixtureResultsDLQ = "fixture_results_dlq"
)
