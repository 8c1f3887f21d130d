package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildManifest(t *testing.T) *Manifest {
	t.Helper()
	doc := []byte(`{
		"version": "1.0",
		"models": {
			"User": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"name": {"type": "string"}
				},
				"required": ["id"]
			}
		},
		"requests": {
			"create_user": {
				"args": {
					"name": {"type": "string", "required": true, "validation": {"min_length": 1, "max_length": 32}},
					"age": {"type": "integer", "validation": {"minimum": 0, "maximum": 150}},
					"role": {"type": "string", "validation": {"enum": ["admin", "member"]}},
					"tags": {"type": "array", "items": {"type": "string"}},
					"profile": {"type": "object", "model_ref": "User"}
				},
				"response": {"type": "object", "model_ref": "User"}
			}
		}
	}`)
	m, err := ParseJSON(doc)
	require.NoError(t, err)
	return m
}

func TestValidateRequestMissingRequiredField(t *testing.T) {
	v := NewValidator(buildManifest(t))
	report := v.ValidateRequest("create_user", map[string]interface{}{})
	assert.False(t, report.Valid)
	assert.Contains(t, report.Errors, FieldError{Field: "name", Message: "Required field is missing"})
}

func TestValidateRequestUnknownArgument(t *testing.T) {
	v := NewValidator(buildManifest(t))
	report := v.ValidateRequest("create_user", map[string]interface{}{"name": "a", "extra": 1})
	assert.False(t, report.Valid)
	found := false
	for _, e := range report.Errors {
		if e.Field == "extra" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateRequestNotFound(t *testing.T) {
	v := NewValidator(buildManifest(t))
	report := v.ValidateRequest("does_not_exist", nil)
	assert.False(t, report.Valid)
}

func TestValidateStringLengthBounds(t *testing.T) {
	v := NewValidator(buildManifest(t))
	report := v.ValidateRequest("create_user", map[string]interface{}{"name": ""})
	assert.False(t, report.Valid)
}

func TestValidateNumericRange(t *testing.T) {
	v := NewValidator(buildManifest(t))
	report := v.ValidateRequest("create_user", map[string]interface{}{"name": "a", "age": 200})
	assert.False(t, report.Valid)
}

func TestValidateEnumAcceptsListedValue(t *testing.T) {
	v := NewValidator(buildManifest(t))
	report := v.ValidateRequest("create_user", map[string]interface{}{"name": "a", "role": "admin"})
	assert.True(t, report.Valid)
}

func TestValidateEnumRejectsUnlistedValue(t *testing.T) {
	v := NewValidator(buildManifest(t))
	report := v.ValidateRequest("create_user", map[string]interface{}{"name": "a", "role": "superadmin"})
	assert.False(t, report.Valid)
}

func TestValidateArrayItems(t *testing.T) {
	v := NewValidator(buildManifest(t))
	report := v.ValidateRequest("create_user", map[string]interface{}{
		"name": "a",
		"tags": []interface{}{"ok", 5},
	})
	assert.False(t, report.Valid)
	found := false
	for _, e := range report.Errors {
		if e.Field == "tags[1]" {
			found = true
		}
	}
	assert.True(t, found, "expected an indexed field path error for tags[1]")
}

func TestValidateModelReferenceRequiredProperty(t *testing.T) {
	v := NewValidator(buildManifest(t))
	report := v.ValidateRequest("create_user", map[string]interface{}{
		"name":    "a",
		"profile": map[string]interface{}{"name": "no id"},
	})
	assert.False(t, report.Valid)
	found := false
	for _, e := range report.Errors {
		if e.Field == "profile.id" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateResponseNoManifestDefined(t *testing.T) {
	doc := []byte(`{"version": "1.0", "requests": {"noop": {}}}`)
	m, err := ParseJSON(doc)
	require.NoError(t, err)
	v := NewValidator(m)

	report := v.ValidateResponse("noop", map[string]interface{}{})
	assert.False(t, report.Valid)
	assert.Contains(t, report.Errors[0].Message, "no response manifest defined")
}

func TestValidateResponseAgainstModelRef(t *testing.T) {
	v := NewValidator(buildManifest(t))
	report := v.ValidateResponse("create_user", map[string]interface{}{"id": "u1", "name": "alice"})
	assert.True(t, report.Valid)
}

func TestDeepEqualJSONCoercesNumericTypes(t *testing.T) {
	assert.True(t, deepEqualJSON(float64(3), 3))
	assert.True(t, deepEqualJSON(3, float64(3)))
	assert.False(t, deepEqualJSON("3", 4))
}
