// Package security implements the two gates described in SPEC_FULL.md §4.7.4
// and §6: a regex-based SecurityValidator screening text for prompt
// injection and sensitive-data leakage, and a ToolCallValidator enforcing
// the tool-call schema (required params, types, bounds) before dispatch.
//
// The compiled-regex-slice style is adapted from
// internal/agent/tool_result_guard.go's builtinSecretPatterns; the teacher
// has no prompt-injection detector, so those patterns are original, written
// in the same idiom.
package security

import "regexp"

var promptInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)new\s+instructions\s*:`),
	regexp.MustCompile(`(?i)</?system>`),
	regexp.MustCompile(`(?i)\[INST\]`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an)\s+`),
	regexp.MustCompile(`(?i)override\s+(your|the)\s+(system\s+)?prompt`),
}

var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{16}\b`),                         // credit-card-like
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),               // SSN
	regexp.MustCompile(`(?i)password\s*=\s*\S+`),
	regexp.MustCompile(`(?i)api[-_]?key\s*=\s*\S+`),
	regexp.MustCompile(`(?i)secret\s*=\s*\S+`),
	regexp.MustCompile(`(?i)token\s*=\s*\S+`),
}

const redactionText = "[REDACTED]"

// Validator is the SecurityValidator from §4.7.4: prompt-injection
// detection and sensitive-data redaction over free text (task descriptions,
// tool arguments, tool output).
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

// DetectPromptInjection returns the name of the first matching pattern, or
// "" if text is clean.
func (v *Validator) DetectPromptInjection(text string) string {
	for i, re := range promptInjectionPatterns {
		if re.MatchString(text) {
			return promptInjectionPatternNames[i]
		}
	}
	return ""
}

var promptInjectionPatternNames = []string{
	"ignore_previous_instructions",
	"disregard_previous_instructions",
	"new_instructions",
	"system_tag",
	"inst_tag",
	"role_override",
	"prompt_override",
}

// ContainsSensitiveData reports whether text matches any sensitive-data pattern.
func (v *Validator) ContainsSensitiveData(text string) bool {
	for _, re := range sensitiveDataPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Sanitize replaces every prompt-injection and sensitive-data match in text
// with [REDACTED].
func (v *Validator) Sanitize(text string) string {
	for _, re := range promptInjectionPatterns {
		text = re.ReplaceAllString(text, redactionText)
	}
	for _, re := range sensitiveDataPatterns {
		text = re.ReplaceAllString(text, redactionText)
	}
	return text
}
