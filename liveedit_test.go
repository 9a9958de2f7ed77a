package liveedit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Style values decode from either a plain CSS string or a structured
// outline object; classifying legacy "on"/"off" strings is the
// persistence mapper's job.
func TestStyleValueDecodesBothShapes(t *testing.T) {
	var v StyleValue
	require.NoError(t, json.Unmarshal([]byte(`"#ff0000"`), &v))
	assert.Nil(t, v.Outline)
	assert.Equal(t, "#ff0000", v.Raw)

	require.NoError(t, json.Unmarshal([]byte(`{"enabled":true,"color":"#000","width":"2"}`), &v))
	require.NotNil(t, v.Outline)
	assert.Equal(t, "2", v.Outline.Width)
	assert.Equal(t, "on", v.String())

	v.Outline.Enabled = false
	assert.Equal(t, "off", v.String())
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	snap := NewSnapshot()
	snap.Texts["a"] = TextRecord{Content: "one"}

	clone := snap.Clone()
	clone.Texts["a"] = TextRecord{Content: "two"}

	assert.Equal(t, "one", snap.Texts["a"].Content)
	assert.False(t, snap.Empty())
	assert.True(t, NewSnapshot().Empty())
}

func TestSlotHelpers(t *testing.T) {
	assert.False(t, ValidSlot(0))
	assert.True(t, ValidSlot(1))
	assert.True(t, ValidSlot(MaxPresetSlots))
	assert.False(t, ValidSlot(MaxPresetSlots+1))

	assert.Equal(t, "preset-3", PresetDocID(3))
}
