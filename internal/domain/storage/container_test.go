package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip/internal/domain/comments"
	"roadtrip/internal/domain/followers"
	"roadtrip/internal/domain/reviews"
	"roadtrip/internal/domain/roadtrips"
	"roadtrip/internal/domain/storage"
	"roadtrip/internal/domain/users"
	"roadtrip/internal/testutil"
)

func TestPostgresContainer(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) *storage.Container {
		return storage.NewPostgresContainer(testutil.NewPool(t))
	})
}

func TestMongoContainer(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) *storage.Container {
		return storage.NewMongoContainer(testutil.NewMongo(t))
	})
}

func runStoreSuite(t *testing.T, open func(t *testing.T) *storage.Container) {
	users.HashCost = 4

	t.Run("users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("road trips", func(t *testing.T) { testRoadTrips(t, open(t)) })
	t.Run("comments", func(t *testing.T) { testComments(t, open(t)) })
	t.Run("reviews", func(t *testing.T) { testReviews(t, open(t)) })
	t.Run("cascades", func(t *testing.T) { testCascades(t, open(t)) })
}

func newUser(t *testing.T, c *storage.Container, username string) *users.User {
	t.Helper()
	u := &users.User{Name: username, Username: username, Email: username + "@example.com", IsActive: true}
	require.NoError(t, u.Password.Set("secret123"))
	require.NoError(t, c.Users.Create(context.Background(), u))
	return u
}

func newTrip(t *testing.T, c *storage.Container, owner string, title string) *roadtrips.RoadTrip {
	t.Helper()
	trip := &roadtrips.RoadTrip{
		Title:       title,
		Description: "A long drive",
		CreatedBy:   owner,
		IsPublic:    true,
		Route:       []roadtrips.Stop{{LocationName: "Big Sur"}, {LocationName: "Monterey"}},
		Tags:        []string{"Coast", "coast", " Views "},
	}
	require.NoError(t, c.RoadTrips.Create(context.Background(), trip))
	return trip
}

func testUsers(t *testing.T, c *storage.Container) {
	ctx := context.Background()
	alice := newUser(t, c, "alice")

	dup := &users.User{Name: "Other", Username: "other", Email: "ALICE@example.com"}
	require.NoError(t, dup.Password.Set("secret123"))
	assert.ErrorIs(t, c.Users.Create(ctx, dup), users.ErrDuplicateEmail)

	dup = &users.User{Name: "Other", Username: "Alice", Email: "other@example.com"}
	require.NoError(t, dup.Password.Set("secret123"))
	assert.ErrorIs(t, c.Users.Create(ctx, dup), users.ErrDuplicateUsername)

	emailTaken, usernameTaken, err := c.Users.Exists(ctx, "alice@example.com", "nobody")
	require.NoError(t, err)
	assert.True(t, emailTaken)
	assert.False(t, usernameTaken)

	got, err := c.Users.GetByEmail(ctx, " Alice@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.NoError(t, got.Password.Compare("secret123"))

	bob := newUser(t, c, "bob")
	require.NoError(t, c.Followers.Follow(ctx, bob.ID, alice.ID))
	assert.ErrorIs(t, c.Followers.Follow(ctx, bob.ID, alice.ID), followers.ErrConflict)
	assert.ErrorIs(t, c.Followers.Follow(ctx, bob.ID, bob.ID), followers.ErrSelfFollow)

	profile, err := c.Profile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, profile.Followers)
	assert.Empty(t, profile.Following)

	require.NoError(t, c.Followers.Unfollow(ctx, bob.ID, alice.ID))
	assert.ErrorIs(t, c.Followers.Unfollow(ctx, bob.ID, alice.ID), followers.ErrNotFollowing)

	list, total, err := c.Users.List(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 1)

	summaries, err := c.Users.Summaries(ctx, []string{alice.ID, bob.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
	assert.Equal(t, "alice", summaries[alice.ID].Username)

	_, err = c.Users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func testRoadTrips(t *testing.T, c *storage.Container) {
	ctx := context.Background()
	owner := newUser(t, c, "owner")
	fan := newUser(t, c, "fan")

	trip := newTrip(t, c, owner.ID, "Pacific Coast Highway")
	assert.Equal(t, roadtrips.DefaultCoverImage, trip.CoverImage)
	assert.Equal(t, []string{"coast", "views"}, trip.Tags)

	draft := newTrip(t, c, owner.ID, "Secret draft")
	draft.Status = roadtrips.StatusDraft
	require.NoError(t, c.RoadTrips.Update(ctx, draft))

	likes, liked, err := c.RoadTrips.ToggleLike(ctx, trip.ID, fan.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, []string{fan.ID}, likes)

	likes, liked, err = c.RoadTrips.ToggleLike(ctx, trip.ID, fan.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Empty(t, likes)

	_, _, err = c.RoadTrips.ToggleLike(ctx, "missing", fan.ID)
	assert.ErrorIs(t, err, roadtrips.ErrNotFound)

	_, saved, err := c.RoadTrips.ToggleSave(ctx, trip.ID, fan.ID)
	require.NoError(t, err)
	assert.True(t, saved)

	savedIDs, err := c.RoadTrips.IDsSavedBy(ctx, fan.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{trip.ID}, savedIDs)

	listed, total, err := c.RoadTrips.List(ctx, roadtrips.ListFilter{PublicOnly: true}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, listed, 1)
	assert.Equal(t, trip.ID, listed[0].ID)

	_, total, err = c.RoadTrips.List(ctx, roadtrips.ListFilter{OwnerID: owner.ID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	found, err := c.RoadTrips.Search(ctx, "monterey", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, trip.ID, found[0].ID)

	found, err = c.RoadTrips.Search(ctx, "secret", 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, c.RoadTrips.IncrementViews(ctx, trip.ID))
	got, err := c.RoadTrips.GetByID(ctx, trip.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Views)
	assert.Equal(t, owner.ID, got.CreatedBy)
	assert.Equal(t, []string{fan.ID}, got.Saves)
}

func testComments(t *testing.T, c *storage.Container) {
	ctx := context.Background()
	owner := newUser(t, c, "writer")
	trip := newTrip(t, c, owner.ID, "Route 66")

	parent := &comments.Comment{Text: "Great trip", UserID: owner.ID, TripID: trip.ID}
	require.NoError(t, c.Comments.Create(ctx, parent))

	reply := &comments.Comment{Text: "Agreed", UserID: owner.ID, TripID: trip.ID, ParentID: &parent.ID}
	require.NoError(t, c.Comments.Create(ctx, reply))

	replies, err := c.Comments.RepliesFor(ctx, []string{parent.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{reply.ID}, replies[parent.ID])

	same, err := c.Comments.UpdateText(ctx, parent.ID, "Great trip")
	require.NoError(t, err)
	assert.False(t, same.IsEdited)

	edited, err := c.Comments.UpdateText(ctx, parent.ID, "$Great trip!")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.NotNil(t, edited.EditedAt)
	assert.Equal(t, "$Great trip!", edited.Text)

	_, liked, err := c.Comments.ToggleLike(ctx, parent.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	count, err := c.Comments.CountByTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, c.Comments.Delete(ctx, parent.ID))
	_, err = c.Comments.GetByID(ctx, reply.ID)
	assert.ErrorIs(t, err, comments.ErrNotFound)
}

func testReviews(t *testing.T, c *storage.Container) {
	ctx := context.Background()
	owner := newUser(t, c, "host")
	a := newUser(t, c, "ann")
	b := newUser(t, c, "ben")
	trip := newTrip(t, c, owner.ID, "Blue Ridge Parkway")

	require.NoError(t, c.Reviews.Create(ctx, &reviews.Review{Comment: "Lovely", Rating: 5, UserID: a.ID, TripID: trip.ID}))
	second := &reviews.Review{Comment: "Fine", Rating: 4, UserID: b.ID, TripID: trip.ID}
	require.NoError(t, c.Reviews.Create(ctx, second))

	err := c.Reviews.Create(ctx, &reviews.Review{Comment: "Again", Rating: 1, UserID: a.ID, TripID: trip.ID})
	assert.ErrorIs(t, err, reviews.ErrDuplicateReview)

	stats, err := c.Reviews.Stats(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, reviews.Stats{AverageRating: 4.5, TotalReviews: 2}, stats)

	has, err := c.Reviews.HasReview(ctx, trip.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, has)

	helpful, marked, err := c.Reviews.ToggleHelpful(ctx, second.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, marked)
	assert.Equal(t, []string{a.ID}, helpful)

	list, total, err := c.Reviews.ListByTrip(ctx, trip.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 1)
}

func testCascades(t *testing.T, c *storage.Container) {
	ctx := context.Background()
	owner := newUser(t, c, "creator")
	guest := newUser(t, c, "guest")
	trip := newTrip(t, c, owner.ID, "Going-to-the-Sun Road")
	other := newTrip(t, c, guest.ID, "Guest trip")

	require.NoError(t, c.Comments.Create(ctx, &comments.Comment{Text: "hi", UserID: guest.ID, TripID: trip.ID}))
	require.NoError(t, c.Reviews.Create(ctx, &reviews.Review{Comment: "ok", Rating: 3, UserID: guest.ID, TripID: trip.ID}))
	_, _, err := c.RoadTrips.ToggleLike(ctx, other.ID, owner.ID)
	require.NoError(t, err)

	require.NoError(t, c.DeleteRoadTrip(ctx, trip.ID))

	count, err := c.Comments.CountByTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	stats, err := c.Reviews.Stats(ctx, trip.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalReviews)

	require.NoError(t, c.DeleteUser(ctx, owner.ID))
	got, err := c.RoadTrips.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Likes)

	assert.ErrorIs(t, c.DeleteUser(ctx, owner.ID), users.ErrNotFound)
}
