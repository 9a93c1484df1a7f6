package deskerr

import "math"

// RecoveryStrategy is one row of the recovery-strategy table in SPEC_FULL.md §4.7.5.
type RecoveryStrategy struct {
	Retry        bool
	MaxRetries   int
	BackoffBase  float64 // seconds; actual wait is BackoffBase ** retryCount
	Fallback     string  // "compress_context" | "inform_llm" | ""
	Notify       bool
}

// Backoff returns the sleep duration, in seconds, for the given retry count.
func (s RecoveryStrategy) Backoff(retryCount int) float64 {
	if s.BackoffBase <= 0 {
		return 0
	}
	return math.Pow(s.BackoffBase, float64(retryCount))
}

var defaultRecoveryStrategy = RecoveryStrategy{Retry: false, Notify: true}

var otherRecoverableStrategy = RecoveryStrategy{Retry: true, MaxRetries: 2}

// GetRecoveryStrategy looks up the table in SPEC_FULL.md §4.7.5 by error kind.
// An error that is not an *AgentError returns (zero-value, false) — the
// caller (HostAgent.handleError) treats that as "do not retry".
func GetRecoveryStrategy(err error) (RecoveryStrategy, bool) {
	ae, ok := AsAgentError(err)
	if !ok {
		return RecoveryStrategy{}, false
	}

	switch ae.Kind {
	case KindRateLimit:
		base := 5.0
		if v, ok := ae.Fields["retry_after"]; ok {
			if n, ok := v.(int); ok && n > 0 {
				base = float64(n)
			}
		}
		return RecoveryStrategy{Retry: true, MaxRetries: 5, BackoffBase: base}, true
	case KindClaudeAPI:
		return RecoveryStrategy{Retry: true, MaxRetries: 3, BackoffBase: 2}, true
	case KindTokenLimit:
		return RecoveryStrategy{Retry: true, MaxRetries: 1, Fallback: "compress_context"}, true
	case KindToolExecution:
		return RecoveryStrategy{Retry: true, MaxRetries: 2, Fallback: "inform_llm"}, true
	case KindWindowLost:
		return RecoveryStrategy{Retry: false, Notify: true}, true
	case KindTooManyTasks:
		return RecoveryStrategy{Retry: true, MaxRetries: 10, BackoffBase: 1}, true
	}

	if ae.Category == CategorySecurity {
		return RecoveryStrategy{Retry: false, Notify: true}, true
	}

	if ae.Recoverable {
		return otherRecoverableStrategy, true
	}
	return defaultRecoveryStrategy, true
}
