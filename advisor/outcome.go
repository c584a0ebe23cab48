package advisor

import "errors"

// Outcome is the explicit result variant of a suggestion call.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeProviderError   Outcome = "provider_error"
	OutcomeTransportError  Outcome = "transport_error"
	OutcomeInvalidResponse Outcome = "invalid_response"
	OutcomeConfigError     Outcome = "config_error"
)

// Result carries exactly one of Suggestion (on success) or Err.
type Result struct {
	Outcome    Outcome
	Suggestion Suggestion
	Err        error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Outcome == OutcomeSuccess }

// Classify maps an error returned by any Provider onto an Outcome. Errors
// that match nothing known are treated as transport failures.
func Classify(err error) Outcome {
	var pe *ProviderError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrMissingCredentials):
		return OutcomeConfigError
	case errors.Is(err, ErrInvalidResponse):
		return OutcomeInvalidResponse
	case errors.As(err, &pe):
		return OutcomeProviderError
	default:
		return OutcomeTransportError
	}
}

// ResultOf wraps a Provider call into a Result.
func ResultOf(s Suggestion, err error) Result {
	if err != nil {
		return Result{Outcome: Classify(err), Err: err}
	}
	return Result{Outcome: OutcomeSuccess, Suggestion: s}
}
