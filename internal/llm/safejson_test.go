package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObject_Strict(t *testing.T) {
	obj, ok := DecodeObject(`{"total": "12.50"}`)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"total": "12.50"}, obj)
}

func TestDecodeObject_MarkdownFence(t *testing.T) {
	obj, ok := DecodeObject("```json\n{\"total\": \"12.50\"}\n```")
	require.True(t, ok)
	assert.Equal(t, "12.50", obj["total"])
}

func TestDecodeObject_LeadingProse(t *testing.T) {
	obj, ok := DecodeObject(`Here is the extraction: {"a": 1} and some trailing text`)
	require.True(t, ok)
	assert.Equal(t, 1.0, obj["a"])
}

func TestDecodeObject_BracesInsideStrings(t *testing.T) {
	obj, ok := DecodeObject(`reply: {"note": "uses {curly} braces and a \" quote", "n": 2}`)
	require.True(t, ok)
	assert.Equal(t, `uses {curly} braces and a " quote`, obj["note"])
	assert.Equal(t, 2.0, obj["n"])
}

func TestDecodeObject_NestedObjects(t *testing.T) {
	obj, ok := DecodeObject(`x {"outer": {"inner": "v"}} y`)
	require.True(t, ok)
	inner, ok := obj["outer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v", inner["inner"])
}

func TestDecodeObject_Failures(t *testing.T) {
	for _, text := range []string{
		"",
		"   ",
		"no json here",
		"{unbalanced",
		`[1, 2, 3]`,
		`"just a string"`,
	} {
		_, ok := DecodeObject(text)
		assert.False(t, ok, "input %q", text)
	}
}

func TestImageDataURI(t *testing.T) {
	im := Image{MediaType: "image/png", Data: []byte{0x89, 0x50}}
	assert.Equal(t, "data:image/png;base64,iVA=", im.DataURI())
}
