package roadtrips

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	t.Run("placeholder cover", func(t *testing.T) {
		trip := &RoadTrip{Title: "  Coast  "}
		trip.ApplyDefaults()

		assert.Equal(t, "Coast", trip.Title)
		assert.Equal(t, DefaultCoverImage, trip.CoverImage)
		assert.Equal(t, Medium, trip.Difficulty)
		assert.Equal(t, StatusPublished, trip.Status)
		assert.NotNil(t, trip.Likes)
		assert.NotNil(t, trip.Saves)
		assert.NotNil(t, trip.Route)
	})

	t.Run("first image becomes cover", func(t *testing.T) {
		trip := &RoadTrip{Images: []string{"a.jpg", "b.jpg"}}
		trip.ApplyDefaults()
		assert.Equal(t, "a.jpg", trip.CoverImage)
	})

	t.Run("explicit cover kept", func(t *testing.T) {
		trip := &RoadTrip{CoverImage: "c.jpg", Images: []string{"a.jpg"}}
		trip.ApplyDefaults()
		assert.Equal(t, "c.jpg", trip.CoverImage)
	})

	t.Run("budget currency", func(t *testing.T) {
		trip := &RoadTrip{Budget: &Budget{Currency: " eur "}}
		trip.ApplyDefaults()
		assert.Equal(t, "EUR", trip.Budget.Currency)

		trip = &RoadTrip{Budget: &Budget{}}
		trip.ApplyDefaults()
		assert.Equal(t, "USD", trip.Budget.Currency)
	})
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"coast", "food"}, NormalizeTags([]string{" Coast", "", "FOOD", "coast "}))
	assert.Equal(t, []string{}, NormalizeTags(nil))
}

func TestVisibility(t *testing.T) {
	public := &RoadTrip{CreatedBy: "owner", IsPublic: true, Status: StatusPublished}
	draft := &RoadTrip{CreatedBy: "owner", IsPublic: true, Status: StatusDraft}
	private := &RoadTrip{CreatedBy: "owner", Status: StatusPublished}

	assert.True(t, public.VisibleTo(""))
	assert.False(t, draft.VisibleTo(""))
	assert.False(t, private.VisibleTo("someone"))
	assert.True(t, private.VisibleTo("owner"))
	assert.False(t, private.IsOwner(""))
}
