package audit

import (
	"remedia/internal/mask"
)

// sensitiveFields are masked wherever they appear in event metadata,
// including nested payloads providers echo back.
var sensitiveFields = map[string]bool{
	"nin":            true,
	"bvn":            true,
	"cac":            true,
	"password":       true,
	"secretKey":      true,
	"apiKey":         true,
	"identityNumber": true,
	"photo":          true,
	"signature":      true,
	"serviceId":      true,
}

// nestedFields are containers whose contents are sanitized recursively.
var nestedFields = map[string]bool{
	"data":         true,
	"ResponseData": true,
}

// Sanitize returns a copy of metadata with every sensitive field masked. The
// input is never modified. Non-string sensitive values are replaced with the
// fixed mask since their string form could leak structure.
func Sanitize(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		switch {
		case sensitiveFields[key]:
			if s, ok := value.(string); ok {
				out[key] = mask.Default(s)
			} else {
				out[key] = mask.Default("")
			}
		case nestedFields[key]:
			if nested, ok := value.(map[string]any); ok {
				out[key] = Sanitize(nested)
			} else {
				out[key] = value
			}
		default:
			out[key] = value
		}
	}
	return out
}
