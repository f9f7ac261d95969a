package domain

// OutcomeKind classifies the result of a per-symbol or per-trial unit of
// work. Local failures are recorded as skips so the batch can continue and
// tests can assert on the reason; only invalid input surfaces to the caller.
type OutcomeKind string

const (
	OutcomeOK           OutcomeKind = "ok"
	OutcomeSkipped      OutcomeKind = "skipped"
	OutcomeInvalidInput OutcomeKind = "invalid_input"
)

// SkipReason names why a symbol or trial was excluded from aggregation.
type SkipReason string

const (
	SkipInsufficientData SkipReason = "insufficient_data"
	SkipMissingField     SkipReason = "missing_field"
	SkipSimulationError  SkipReason = "simulation_error"
	SkipSolverFailure    SkipReason = "solver_failure"
)

// Outcome is the typed result attached to one symbol in a batch run.
type Outcome struct {
	Symbol string      `json:"symbol"`
	Kind   OutcomeKind `json:"kind"`
	Reason SkipReason  `json:"reason,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

// Skipped builds a skip outcome for a symbol.
func Skipped(symbol string, reason SkipReason, detail string) Outcome {
	return Outcome{Symbol: symbol, Kind: OutcomeSkipped, Reason: reason, Detail: detail}
}

// OK builds a success outcome for a symbol.
func OK(symbol string) Outcome {
	return Outcome{Symbol: symbol, Kind: OutcomeOK}
}
