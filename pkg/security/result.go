package security

// Result is the outcome of an authentication attempt. A login starts in
// ResultNotAttempted and ends in exactly one of the four terminal states.
// ResultPasswordChangeRequired transitions to ResultSuccess only through an
// explicit password change performed by the same subject.
type Result int

const (
	ResultNotAttempted Result = iota
	ResultFailure
	ResultTooManyAttempts
	ResultSuccess
	ResultPasswordChangeRequired
)

func (r Result) String() string {
	switch r {
	case ResultNotAttempted:
		return "NOT_ATTEMPTED"
	case ResultFailure:
		return "FAILURE"
	case ResultTooManyAttempts:
		return "TOO_MANY_ATTEMPTS"
	case ResultSuccess:
		return "SUCCESS"
	case ResultPasswordChangeRequired:
		return "PASSWORD_CHANGE_REQUIRED"
	default:
		return "UNKNOWN"
	}
}

// mergeMatrix encodes the multi-realm precedence rules. Rows are the current
// aggregate, columns the new per-realm result. The table is a commutative,
// associative join: FAILURE < TOO_MANY_ATTEMPTS < SUCCESS, with
// PASSWORD_CHANGE_REQUIRED absorbing regardless of order.
var mergeMatrix = [5][5]Result{
	// NOT_ATTEMPTED row: the first real result wins.
	{ResultNotAttempted, ResultFailure, ResultTooManyAttempts, ResultSuccess, ResultPasswordChangeRequired},
	// FAILURE row.
	{ResultFailure, ResultFailure, ResultTooManyAttempts, ResultSuccess, ResultPasswordChangeRequired},
	// TOO_MANY_ATTEMPTS row.
	{ResultTooManyAttempts, ResultTooManyAttempts, ResultTooManyAttempts, ResultSuccess, ResultPasswordChangeRequired},
	// SUCCESS row: success is never downgraded, except by a required
	// password change.
	{ResultSuccess, ResultSuccess, ResultSuccess, ResultSuccess, ResultPasswordChangeRequired},
	// PASSWORD_CHANGE_REQUIRED row: absorbing.
	{ResultPasswordChangeRequired, ResultPasswordChangeRequired, ResultPasswordChangeRequired, ResultPasswordChangeRequired, ResultPasswordChangeRequired},
}

// Merge combines the current aggregate outcome with a new per-realm result.
func Merge(current, next Result) Result {
	if current < 0 || int(current) >= len(mergeMatrix) || next < 0 || int(next) >= len(mergeMatrix) {
		return ResultFailure
	}
	return mergeMatrix[current][next]
}

// IsTerminal reports whether the result is one of the four terminal states.
func (r Result) IsTerminal() bool {
	return r != ResultNotAttempted
}
