package topics

const (
	// Fluxo de auditoria das rodadas (toda saída observável do engine)
	RoundEvents = "round_events"

	// DLQ
	RoundEventsDLQ = "round_events_dlq"
)
