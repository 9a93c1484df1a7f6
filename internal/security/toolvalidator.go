package security

import (
	"fmt"

	"github.com/deskagent/deskagent/internal/coretypes"
)

// maxStringParamLen bounds any string-typed tool argument.
const maxStringParamLen = 10000

// positiveOnlyParams must be > 0 when present, per §6.
var positiveOnlyParams = map[string]struct{}{
	"width": {}, "height": {}, "delay": {}, "timeout": {},
}

// coordinateParams are checked against WindowBounds when both are present.
var coordinateParams = map[string]struct{}{
	"x": {}, "y": {}, "start_x": {}, "start_y": {}, "end_x": {}, "end_y": {},
}

// WindowBounds is the target window's client rectangle, used to bounds-check
// coordinate arguments.
type WindowBounds struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (b WindowBounds) contains(coord string, v float64) bool {
	switch coord {
	case "x", "start_x", "end_x":
		return v >= float64(b.X) && v <= float64(b.X+b.Width)
	case "y", "start_y", "end_y":
		return v >= float64(b.Y) && v <= float64(b.Y+b.Height)
	default:
		return true
	}
}

// ValidationResult carries zero or more field-level errors. Valid reports
// whether the call may be dispatched.
type ValidationResult struct {
	Errors []FieldError
}

type FieldError struct {
	Field   string
	Message string
}

func (r ValidationResult) Valid() bool { return len(r.Errors) == 0 }

func (r ValidationResult) Error() string {
	if len(r.Errors) == 0 {
		return ""
	}
	msg := "Validation failed: "
	for i, e := range r.Errors {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return msg
}

func fail(field, message string) ValidationResult {
	return ValidationResult{Errors: []FieldError{{Field: field, Message: message}}}
}

// ToolCallValidator enforces the tool-call schema described in
// SPEC_FULL.md §6 before a call reaches an AppAgent: the tool must exist,
// every required parameter must be present with the declared type, positive-
// only numerics must be > 0, strings must be within the length cap, and
// coordinate parameters must lie within window_bounds when supplied.
type ToolCallValidator struct {
	registry map[string]coretypes.ToolDefinition
}

func NewToolCallValidator(defs []coretypes.ToolDefinition) *ToolCallValidator {
	registry := make(map[string]coretypes.ToolDefinition, len(defs))
	for _, d := range defs {
		registry[d.Name] = d
	}
	return &ToolCallValidator{registry: registry}
}

// Validate checks call against the registry and, if bounds is non-nil,
// against the target window's client rectangle.
func (v *ToolCallValidator) Validate(call coretypes.ToolCall, bounds *WindowBounds) ValidationResult {
	def, ok := v.registry[call.Name]
	if !ok {
		return fail("name", fmt.Sprintf("unknown tool %q", call.Name))
	}

	for _, param := range def.Parameters {
		value, present := call.Arguments[param.Name]
		if !present {
			if param.Required {
				return fail(param.Name, "required parameter missing")
			}
			continue
		}

		if res := validateType(param, value); !res.Valid() {
			return res
		}

		if _, positiveOnly := positiveOnlyParams[param.Name]; positiveOnly {
			if n, ok := asFloat(value); ok && n <= 0 {
				return fail(param.Name, "must be greater than 0")
			}
		}

		if s, ok := value.(string); ok && len(s) > maxStringParamLen {
			return fail(param.Name, fmt.Sprintf("exceeds maximum length of %d characters", maxStringParamLen))
		}

		if _, isCoord := coordinateParams[param.Name]; isCoord && bounds != nil {
			if n, ok := asFloat(value); ok && !bounds.contains(param.Name, n) {
				return fail(param.Name, "coordinate is outside window_bounds")
			}
		}
	}

	return ValidationResult{}
}

func validateType(param coretypes.ToolParameter, value any) ValidationResult {
	switch param.Type {
	case coretypes.ParamString:
		if _, ok := value.(string); !ok {
			return fail(param.Name, "expected string")
		}
	case coretypes.ParamBoolean:
		if _, ok := value.(bool); !ok {
			return fail(param.Name, "expected boolean")
		}
	case coretypes.ParamInteger:
		if _, isBool := value.(bool); isBool {
			return fail(param.Name, "expected integer")
		}
		if _, ok := asFloat(value); !ok {
			return fail(param.Name, "expected integer")
		}
	case coretypes.ParamNumber:
		if _, isBool := value.(bool); isBool {
			return fail(param.Name, "expected number")
		}
		if _, ok := asFloat(value); !ok {
			return fail(param.Name, "expected number")
		}
	case coretypes.ParamArray:
		if _, ok := value.([]any); !ok {
			return fail(param.Name, "expected array")
		}
	case coretypes.ParamObject:
		if _, ok := value.(map[string]any); !ok {
			return fail(param.Name, "expected object")
		}
	}
	return ValidationResult{}
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
