package termination

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// VerifierClient is the narrow slice of LLMClient the verifier needs: a
// single-shot call with an optional attached image, no tool use. Satisfied
// by internal/provider's LLMClient adapters.
type VerifierClient interface {
	CallWithImage(ctx context.Context, prompt string, imagePNGBase64 string) (string, error)
}

// VerifierConfig configures the minimum confidence threshold.
type VerifierConfig struct {
	MinConfidence float64 // default 0.7
}

func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{MinConfidence: 0.7}
}

// Verifier is the SuccessVerifier from SPEC_FULL.md §4.3: a post-hoc,
// fail-open cross-check of a claimed SUCCESS termination against a final
// screenshot.
type Verifier struct {
	client VerifierClient
	cfg    VerifierConfig
	logger *slog.Logger
}

func NewVerifier(client VerifierClient, cfg VerifierConfig, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.7
	}
	return &Verifier{client: client, cfg: cfg, logger: logger}
}

type verificationResponse struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

const maxToolHistoryEntries = 10
const maxArgsPerEntry = 3
const maxArgTruncateLen = 30

// ToolHistoryEntry is the minimal shape the verifier summarizes from the
// host's full tool call/result history.
type ToolHistoryEntry struct {
	Name    string
	Args    []string
	IsError bool
}

// Verify asks the (typically cheaper) verification model whether taskText
// was actually accomplished, given a summary of the last tool calls and a
// base64-encoded PNG of the final screenshot. It fails open: any missing
// input, parse failure, or client error returns true, logged at warning.
func (v *Verifier) Verify(ctx context.Context, taskText string, history []ToolHistoryEntry, screenshotPNGBase64 string) bool {
	if v.client == nil || screenshotPNGBase64 == "" {
		return true
	}

	prompt := v.buildPrompt(taskText, history)

	raw, err := v.client.CallWithImage(ctx, prompt, screenshotPNGBase64)
	if err != nil {
		v.logger.Warn("success verification call failed, defaulting to verified", "error", err)
		return true
	}

	resp, err := parseVerificationResponse(raw)
	if err != nil {
		v.logger.Warn("success verification response unparseable, defaulting to verified", "error", err, "raw", raw)
		return true
	}

	return resp.Verified && resp.Confidence >= v.cfg.MinConfidence
}

func (v *Verifier) buildPrompt(taskText string, history []ToolHistoryEntry) string {
	if len(history) > maxToolHistoryEntries {
		history = history[len(history)-maxToolHistoryEntries:]
	}

	var sb strings.Builder
	sb.WriteString("Task: ")
	sb.WriteString(taskText)
	sb.WriteString("\n\nRecent actions:\n")
	for _, h := range history {
		marker := "success"
		if h.IsError {
			marker = "error"
		}
		args := h.Args
		if len(args) > maxArgsPerEntry {
			args = args[:maxArgsPerEntry]
		}
		truncated := make([]string, len(args))
		for i, a := range args {
			if len(a) > maxArgTruncateLen {
				a = a[:maxArgTruncateLen]
			}
			truncated[i] = a
		}
		fmt.Fprintf(&sb, "- %s(%s) [%s]\n", h.Name, strings.Join(truncated, ", "), marker)
	}
	sb.WriteString("\nLooking at the attached screenshot, was the task actually accomplished? ")
	sb.WriteString(`Respond with strict JSON: {"verified": bool, "confidence": float between 0 and 1, "reason": string}`)
	return sb.String()
}

// parseVerificationResponse strips an optional markdown code fence before
// decoding, since models frequently wrap JSON in ```json ... ```.
func parseVerificationResponse(raw string) (verificationResponse, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}

	var resp verificationResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return verificationResponse{}, err
	}
	return resp, nil
}
