package artifacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndUpdate(t *testing.T) {
	store := NewStore()

	doc, err := store.Create("Launch plan", KindText, "Draft")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)

	updated, err := store.Update(doc.ID, "Final")
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Content)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt), "UpdatedAt must not precede CreatedAt")

	got, ok := store.Get(doc.ID)
	require.True(t, ok)
	assert.Equal(t, "Final", got.Content)
}

func TestCreateRejectsUnknownKind(t *testing.T) {
	store := NewStore()
	_, err := store.Create("x", Kind("image"), "")
	assert.Error(t, err)
}

func TestUpdateMissingDocument(t *testing.T) {
	store := NewStore()
	_, err := store.Update("nope", "content")
	assert.Error(t, err)
}

func TestSuggestions(t *testing.T) {
	store := NewStore()
	doc, err := store.Create("Essay", KindText, "body")
	require.NoError(t, err)

	err = store.AddSuggestions(doc.ID, []Suggestion{
		{OriginalText: "body", SuggestedText: "stronger body", Description: "punch it up"},
	})
	require.NoError(t, err)

	got := store.Suggestions(doc.ID)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, doc.ID, got[0].DocumentID)

	assert.Error(t, store.AddSuggestions("missing", nil))
}
