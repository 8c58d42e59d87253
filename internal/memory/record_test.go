package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReserved_CoversAllSystemFields(t *testing.T) {
	for _, key := range []string{"id", "text", "source", "timestamp", "created_at", "updated_at", "entity_key"} {
		assert.True(t, IsReserved(key), key)
	}
	assert.False(t, IsReserved("project"))
}

func TestStripReserved_DropsOnlyReservedKeys(t *testing.T) {
	in := map[string]any{
		"id":      99,
		"project": "memoryd",
		"source":  "cli",
		"tag":     "infra",
	}

	out := StripReserved(in)

	assert.Equal(t, map[string]any{"project": "memoryd", "tag": "infra"}, out)
}

func TestStripReserved_EmptyResultIsNil(t *testing.T) {
	assert.Nil(t, StripReserved(map[string]any{"id": 1}))
	assert.Nil(t, StripReserved(nil))
}

func TestValidCategory_DefaultsUnknownToDetail(t *testing.T) {
	assert.Equal(t, CategoryDecision, ValidCategory("decision"))
	assert.Equal(t, CategoryLearning, ValidCategory("learning"))
	assert.Equal(t, CategoryDetail, ValidCategory("nonsense"))
	assert.Equal(t, CategoryDetail, ValidCategory(""))
}

func TestRecord_Clone_IsIndependentOfSource(t *testing.T) {
	orig := &Record{
		ID:               1,
		Text:             "hello",
		Metadata:         map[string]any{"entity_key": "user:42"},
		ConsolidatedFrom: []int64{2, 3},
	}

	clone := orig.Clone()
	clone.Metadata["entity_key"] = "user:7"
	clone.ConsolidatedFrom[0] = 99

	assert.Equal(t, "user:42", orig.Metadata["entity_key"])
	assert.Equal(t, int64(2), orig.ConsolidatedFrom[0])
	assert.Equal(t, "user:7", clone.EntityKey())
}

func TestRecord_EntityKey_EmptyWithoutMetadata(t *testing.T) {
	r := &Record{}
	assert.Equal(t, "", r.EntityKey())
}
