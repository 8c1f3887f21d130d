package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONFlatLayout(t *testing.T) {
	doc := []byte(`{
		"version": "1.0",
		"requests": {
			"echo": {
				"args": {"message": {"type": "string", "required": true}}
			}
		}
	}`)
	m, err := ParseJSON(doc)
	require.NoError(t, err)
	assert.True(t, m.HasRequest("echo"))
}

func TestParseJSONLegacyChannelLayoutFoldsIntoFlat(t *testing.T) {
	doc := []byte(`{
		"version": "1.0",
		"channels": {
			"main": {
				"requests": {
					"ping": {"args": {}}
				}
			}
		}
	}`)
	m, err := ParseJSON(doc)
	require.NoError(t, err)
	assert.True(t, m.HasRequest("ping"))
}

func TestFlatRequestWinsOverChannelOnNameCollision(t *testing.T) {
	doc := []byte(`{
		"version": "1.0",
		"requests": {
			"dup": {"description": "flat wins"}
		},
		"channels": {
			"main": {
				"requests": {
					"dup": {"description": "channel loses"}
				}
			}
		}
	}`)
	m, err := ParseJSON(doc)
	require.NoError(t, err)
	assert.Equal(t, "flat wins", m.GetRequest("dup").Description)
}

func TestParseYAMLEquivalentToJSON(t *testing.T) {
	doc := []byte(`
version: "1.0"
requests:
  ping:
    args: {}
`)
	m, err := ParseYAML(doc)
	require.NoError(t, err)
	assert.True(t, m.HasRequest("ping"))
}

func TestParseAutoDetectsJSONAndYAML(t *testing.T) {
	jsonDoc := []byte(`{"version": "1.0", "requests": {"a": {}}}`)
	m1, err := ParseAuto(jsonDoc)
	require.NoError(t, err)
	assert.True(t, m1.HasRequest("a"))

	yamlDoc := []byte("version: \"1.0\"\nrequests:\n  b: {}\n")
	m2, err := ParseAuto(yamlDoc)
	require.NoError(t, err)
	assert.True(t, m2.HasRequest("b"))
}

func TestParseRejectsMissingVersion(t *testing.T) {
	doc := []byte(`{"requests": {"a": {}}}`)
	_, err := ParseJSON(doc)
	assert.Error(t, err)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	doc := []byte(`{"version": "1.0", "bogus_field": true}`)
	_, err := ParseJSON(doc)
	assert.Error(t, err)
}

func TestParseRejectsInvalidArgType(t *testing.T) {
	doc := []byte(`{"version": "1.0", "requests": {"a": {"args": {"x": {"type": "not-a-type"}}}}}`)
	_, err := ParseJSON(doc)
	assert.Error(t, err)
}

func TestParseRejectsInvalidRegexPattern(t *testing.T) {
	doc := []byte(`{"version": "1.0", "requests": {"a": {"args": {"x": {"type": "string", "validation": {"pattern": "("}}}}}}`)
	_, err := ParseJSON(doc)
	assert.Error(t, err)
}
