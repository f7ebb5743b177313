package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_MasksSensitiveFields(t *testing.T) {
	in := map[string]any{
		"nin":       "12345678901",
		"apiKey":    "sk-live-abcdef",
		"provider":  "datapro",
		"attempt":   3,
		"serviceId": "svc-001122",
	}

	out := Sanitize(in)

	assert.Equal(t, "1234*******", out["nin"])
	assert.Equal(t, "sk-l**********", out["apiKey"])
	assert.Equal(t, "svc-******", out["serviceId"])
	assert.Equal(t, "datapro", out["provider"])
	assert.Equal(t, 3, out["attempt"])
}

func TestSanitize_RecursesIntoNestedPayloads(t *testing.T) {
	in := map[string]any{
		"data": map[string]any{
			"bvn": "22345678901",
			"ResponseData": map[string]any{
				"identityNumber": "12345678901",
				"firstname":      "adaeze",
			},
		},
	}

	out := Sanitize(in)

	data := out["data"].(map[string]any)
	assert.Equal(t, "2234*******", data["bvn"])
	nested := data["ResponseData"].(map[string]any)
	assert.Equal(t, "1234*******", nested["identityNumber"])
	assert.Equal(t, "adaeze", nested["firstname"])
}

func TestSanitize_NonStringSensitiveValueFullyMasked(t *testing.T) {
	out := Sanitize(map[string]any{"password": 12345})
	assert.Equal(t, "****", out["password"])
}

func TestSanitize_DoesNotMutateInput(t *testing.T) {
	in := map[string]any{
		"nin":  "12345678901",
		"data": map[string]any{"bvn": "22345678901"},
	}

	Sanitize(in)

	assert.Equal(t, "12345678901", in["nin"])
	assert.Equal(t, "22345678901", in["data"].(map[string]any)["bvn"])
}

func TestSanitize_NilInput(t *testing.T) {
	assert.Nil(t, Sanitize(nil))
}
