package hostagent

import (
	"context"
	"time"

	"github.com/deskagent/deskagent/internal/coretypes"
	"github.com/deskagent/deskagent/internal/deskerr"
)

// handleError is handle_error from §4.7.5: consult the recovery-strategy
// table, and if the budget allows, sleep the backoff and report that the
// iteration may retry.
func (h *HostAgent) handleError(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if _, ok := deskerr.AsAgentError(err); !ok {
		return false
	}

	strategy, _ := deskerr.GetRecoveryStrategy(err)
	if !strategy.Retry {
		return false
	}

	if h.retryCount >= strategy.MaxRetries {
		return false
	}
	h.retryCount++

	wait := strategy.Backoff(h.retryCount)
	if wait > 0 {
		select {
		case <-time.After(time.Duration(wait * float64(time.Second))):
		case <-ctx.Done():
			return false
		}
	}

	if strategy.Fallback == "compress_context" {
		h.compressContext()
	}
	return true
}

// compressContext is the integration hook for shrinking _messages in place
// when a TokenLimitError's fallback fires. The default implementation keeps
// the first message (the original task) and the last N verbatim, replacing
// the middle span with one synthetic summary message, per the Decision
// recorded for this open question.
func (h *HostAgent) compressContext() {
	const keepTail = 6
	if len(h.messages) <= keepTail+1 {
		return
	}

	head := h.messages[0]
	tail := h.messages[len(h.messages)-keepTail:]

	summary := summarizeMessages(h.messages[1 : len(h.messages)-keepTail])

	compressed := make([]coretypes.Message, 0, 2+len(tail))
	compressed = append(compressed, head)
	compressed = append(compressed, coretypes.Message{
		Role:    coretypes.RoleAssistant,
		Content: summary,
	})
	compressed = append(compressed, tail...)
	h.messages = compressed
}

func summarizeMessages(msgs []coretypes.Message) string {
	if len(msgs) == 0 {
		return "(no prior context)"
	}
	return "Context summary: " + func() string {
		s := ""
		for i, m := range msgs {
			if i > 0 {
				s += " "
			}
			if len(m.Content) > 80 {
				s += m.Content[:80]
			} else {
				s += m.Content
			}
		}
		return s
	}()
}
