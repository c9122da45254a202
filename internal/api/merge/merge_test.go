package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

func TestApply(t *testing.T) {
	t.Run("sub-object merges one level", func(t *testing.T) {
		stored := types.Document{"address": map[string]any{"city": "X", "pincode": "111111"}}
		incoming := types.Document{"address": map[string]any{"pincode": "222222"}}

		got := Apply(stored, incoming)

		assert.Equal(t, types.Document{"address": map[string]any{"city": "X", "pincode": "222222"}}, got)
	})

	t.Run("empty string clears", func(t *testing.T) {
		got := Apply(types.Document{"about": "old"}, types.Document{"about": ""})
		assert.Equal(t, "", got["about"])
	})

	t.Run("absent fields untouched", func(t *testing.T) {
		stored := types.Document{"name": "A", "email": "a@b.co"}
		got := Apply(stored, types.Document{"mobile": "9876543210"})
		assert.Equal(t, types.Document{"name": "A", "email": "a@b.co", "mobile": "9876543210"}, got)
	})

	t.Run("object replaces scalar", func(t *testing.T) {
		got := Apply(types.Document{"address": "legacy string"}, types.Document{"address": map[string]any{"city": "Pune"}})
		assert.Equal(t, map[string]any{"city": "Pune"}, got["address"])
	})

	t.Run("inputs are not modified", func(t *testing.T) {
		storedAddr := map[string]any{"city": "X"}
		stored := types.Document{"address": storedAddr}
		incoming := types.Document{"address": map[string]any{"state": "MH"}}

		got := Apply(stored, incoming)
		got["address"].(map[string]any)["city"] = "Changed"

		assert.Equal(t, map[string]any{"city": "X"}, storedAddr)
		assert.Equal(t, types.Document{"address": map[string]any{"state": "MH"}}, incoming)
	})

	t.Run("nil stored", func(t *testing.T) {
		got := Apply(nil, types.Document{"name": "A"})
		assert.Equal(t, types.Document{"name": "A"}, got)
	})
}

func TestChanged(t *testing.T) {
	stored := types.Document{"name": "A", "address": map[string]any{"city": "X"}}

	assert.False(t, Changed(stored, types.Document{}))
	assert.False(t, Changed(stored, types.Document{"name": "A"}))
	assert.False(t, Changed(stored, types.Document{"address": map[string]any{"city": "X"}}))
	assert.True(t, Changed(stored, types.Document{"name": "B"}))
	assert.True(t, Changed(stored, types.Document{"address": map[string]any{"state": "MH"}}))
	assert.True(t, Changed(stored, types.Document{"mobile": "9876543210"}))
}

func TestChanged_Slices(t *testing.T) {
	stored := types.Document{
		"skills":  []any{"driving", "welding"},
		"address": map[string]any{"lines": []any{"12 MG Road"}},
	}

	assert.False(t, Changed(stored, types.Document{"skills": []any{"driving", "welding"}}))
	assert.False(t, Changed(stored, types.Document{"address": map[string]any{"lines": []any{"12 MG Road"}}}))
	assert.True(t, Changed(stored, types.Document{"skills": []any{"driving"}}))
	assert.True(t, Changed(stored, types.Document{"address": map[string]any{"lines": []any{"14 MG Road"}}}))
}
