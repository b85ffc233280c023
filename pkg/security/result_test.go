package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergePrecedence(t *testing.T) {
	tests := []struct {
		name    string
		current Result
		next    Result
		want    Result
	}{
		{"success then password change", ResultSuccess, ResultPasswordChangeRequired, ResultPasswordChangeRequired},
		{"password change then success", ResultPasswordChangeRequired, ResultSuccess, ResultPasswordChangeRequired},
		{"failure then success", ResultFailure, ResultSuccess, ResultSuccess},
		{"success then failure", ResultSuccess, ResultFailure, ResultSuccess},
		{"too many attempts then failure", ResultTooManyAttempts, ResultFailure, ResultTooManyAttempts},
		{"failure then too many attempts", ResultFailure, ResultTooManyAttempts, ResultTooManyAttempts},
		{"not attempted then failure", ResultNotAttempted, ResultFailure, ResultFailure},
		{"not attempted then success", ResultNotAttempted, ResultSuccess, ResultSuccess},
		{"failure then failure", ResultFailure, ResultFailure, ResultFailure},
		{"password change then too many attempts", ResultPasswordChangeRequired, ResultTooManyAttempts, ResultPasswordChangeRequired},
		{"too many attempts then password change", ResultTooManyAttempts, ResultPasswordChangeRequired, ResultPasswordChangeRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.current, tt.next))
		})
	}
}

// Merge must be associative so the aggregate outcome does not depend on how
// realm results are grouped.
func TestMergeAssociative(t *testing.T) {
	all := []Result{ResultNotAttempted, ResultFailure, ResultTooManyAttempts, ResultSuccess, ResultPasswordChangeRequired}

	for _, a := range all {
		for _, b := range all {
			for _, c := range all {
				left := Merge(Merge(a, b), c)
				right := Merge(a, Merge(b, c))
				assert.Equal(t, left, right, "merge(merge(%v,%v),%v) != merge(%v,merge(%v,%v))", a, b, c, a, b, c)
			}
		}
	}
}

// The absorbing element dominates regardless of position.
func TestMergePasswordChangeAbsorbing(t *testing.T) {
	all := []Result{ResultNotAttempted, ResultFailure, ResultTooManyAttempts, ResultSuccess, ResultPasswordChangeRequired}

	for _, r := range all {
		assert.Equal(t, ResultPasswordChangeRequired, Merge(ResultPasswordChangeRequired, r))
		assert.Equal(t, ResultPasswordChangeRequired, Merge(r, ResultPasswordChangeRequired))
	}
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "SUCCESS", ResultSuccess.String())
	assert.Equal(t, "PASSWORD_CHANGE_REQUIRED", ResultPasswordChangeRequired.String())
	assert.False(t, ResultNotAttempted.IsTerminal())
	assert.True(t, ResultFailure.IsTerminal())
}
