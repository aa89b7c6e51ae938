package treasury

// Settlement modes.
const (
	ModeSimulated = "simulated"
	ModeExecuted  = "executed"
)

// Receipt is the outcome of an automatic settlement attempt.
type Receipt struct {
	Success bool
	TxHash  string
	Mode    string
}

// ResultKind classifies a direct charge outcome. AllowanceRequired is a
// first-class branch so callers can prompt the user to approve the
// treasury contract instead of showing a generic failure.
type ResultKind int

const (
	Ok ResultKind = iota
	AllowanceRequired
	Failed
)

func (k ResultKind) String() string {
	switch k {
	case Ok:
		return "OK"
	case AllowanceRequired:
		return "ALLOWANCE_REQUIRED"
	default:
		return "FAILED"
	}
}

// PaymentResult is the tagged outcome of the permit/allowance charge path.
type PaymentResult struct {
	Kind   ResultKind
	TxHash string
	Reason string
}
