package shared

import "encoding/json"

// Error envelope shape used network-wide. Errors is populated only for
// validation failures, one entry per violated field.
const (
	ErrTypeValidation  = "validation_error"
	ErrTypeDomain      = "domain_error"
	ErrTypeInternal    = "internal_error"
	ErrTypeRateLimited = "rate_limited"
)

type FieldError struct {
	Field     string `json:"field"`
	FieldPath string `json:"field_path"`
	Message   string `json:"message"`
	Type      string `json:"type"`
}

type ErrorEnvelope struct {
	Detail string       `json:"detail"`
	Type   string       `json:"type"`
	Errors []FieldError `json:"errors"`
}

// SchemaVersion is stamped on profile-family responses.
const SchemaVersion = "1.0"

// Shaped marks a payload that already passed through the response shaper.
// Handlers hand raw domain results to Shape/ShapeVersioned exactly once;
// nothing else constructs this type, so double-shaping does not compile.
type Shaped struct {
	body any
}

func (s Shaped) MarshalJSON() ([]byte, error) { return json.Marshal(s.body) }

type versioned struct {
	SchemaVersion string `json:"schema_version"`
	Data          any    `json:"data"`
}

// Shape wraps a successful handler result into the outward envelope. Simple
// resources go out as their bare JSON body.
func Shape(v any) Shaped {
	return Shaped{body: v}
}

// ShapeVersioned wraps profile-family responses, which carry a
// schema_version alongside the payload.
func ShapeVersioned(v any) Shaped {
	return Shaped{body: versioned{SchemaVersion: SchemaVersion, Data: v}}
}
