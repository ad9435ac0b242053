package main

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip/internal/domain/reviews"
)

func postReview(t *testing.T, mux http.Handler, token, tripID string, body map[string]any) reviews.Review {
	t.Helper()

	rr := executeRequest(jsonRequest(t, http.MethodPost, "/api/reviews/"+tripID, token, body), mux)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var rv reviews.Review
	decodeData(t, rr, &rv)
	return rv
}

func TestCreateReview(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()
	annToken, _ := register(t, mux, "Ann A", "anna", "a@x.com")
	bobToken, bobID := register(t, mux, "Bob B", "bob", "b@x.com")
	tripID := createTrip(t, mux, annToken, pacificCoast())

	rv := postReview(t, mux, bobToken, tripID, map[string]any{"comment": "Loved every mile", "rating": 5})
	assert.Equal(t, bobID, rv.UserID)
	assert.Equal(t, tripID, rv.TripID)
	assert.Equal(t, reviews.Solo, rv.TravelType)
	assert.Empty(t, rv.Helpful)
	assert.False(t, rv.IsEdited)

	t.Run("second review by the same user", func(t *testing.T) {
		rr := executeRequest(jsonRequest(t, http.MethodPost, "/api/reviews/"+tripID, bobToken, map[string]any{
			"comment": "Changed my mind", "rating": 1,
		}), mux)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "You have already reviewed this trip", decodeError(t, rr).Message)

		stats, err := app.store.Reviews.Stats(t.Context(), tripID)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalReviews)
	})

	cases := []struct {
		name    string
		body    map[string]any
		message string
	}{
		{"short comment", map[string]any{"comment": "meh", "rating": 3}, "Review comment must be at least 5 characters long"},
		{"missing comment", map[string]any{"rating": 3}, "Review comment must be at least 5 characters long"},
		{"long comment", map[string]any{"comment": strings.Repeat("a", 1001), "rating": 3}, "Review comment must be less than 1000 characters"},
		{"rating too high", map[string]any{"comment": "Pretty good", "rating": 6}, "Rating must be between 1 and 5"},
		{"rating missing", map[string]any{"comment": "Pretty good"}, "Rating must be between 1 and 5"},
		{"unknown travel type", map[string]any{"comment": "Pretty good", "rating": 4, "travelType": "Pets"}, "travelType must be one of: Solo, Couple, Family, Friends, Business"},
	}
	cleoToken, _ := register(t, mux, "Cleo C", "cleo", "c@x.com")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := executeRequest(jsonRequest(t, http.MethodPost, "/api/reviews/"+tripID, cleoToken, tc.body), mux)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tc.message, decodeError(t, rr).Message)
		})
	}

	t.Run("unknown trip", func(t *testing.T) {
		rr := executeRequest(jsonRequest(t, http.MethodPost, "/api/reviews/missing", cleoToken, map[string]any{
			"comment": "Pretty good", "rating": 4,
		}), mux)
		require.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Trip not found", decodeError(t, rr).Message)
	})
}

func TestListReviewsWithStats(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()
	annToken, _ := register(t, mux, "Ann A", "anna", "a@x.com")
	tripID := createTrip(t, mux, annToken, pacificCoast())

	for i, rating := range []int{5, 4, 4} {
		token, _ := register(t, mux, "Reviewer", "reviewer"+string(rune('a'+i)), string(rune('a'+i))+"@r.com")
		postReview(t, mux, token, tripID, map[string]any{"comment": "Good drive", "rating": rating})
	}

	rr := executeRequest(jsonRequest(t, http.MethodGet, "/api/reviews/trip/"+tripID+"?limit=2", "", nil), mux)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var list ReviewListResponse
	decodeData(t, rr, &list)
	assert.Len(t, list.Reviews, 2)
	assert.Equal(t, 3, list.Pagination.Total)
	assert.True(t, list.Pagination.HasNext)
	assert.Equal(t, reviews.Stats{AverageRating: 4.3, TotalReviews: 3}, list.Stats)
	for _, rv := range list.Reviews {
		require.NotNil(t, rv.Author)
		assert.NotEmpty(t, rv.Author.Username)
	}

	t.Run("trip without reviews", func(t *testing.T) {
		other := createTrip(t, mux, annToken, pacificCoast())
		rr := executeRequest(jsonRequest(t, http.MethodGet, "/api/reviews/trip/"+other, "", nil), mux)
		require.Equal(t, http.StatusOK, rr.Code)

		var list ReviewListResponse
		decodeData(t, rr, &list)
		assert.Empty(t, list.Reviews)
		assert.Equal(t, reviews.Stats{}, list.Stats)
	})
}

func TestUpdateAndDeleteReview(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()
	annToken, _ := register(t, mux, "Ann A", "anna", "a@x.com")
	bobToken, _ := register(t, mux, "Bob B", "bob", "b@x.com")
	tripID := createTrip(t, mux, annToken, pacificCoast())
	rv := postReview(t, mux, bobToken, tripID, map[string]any{"comment": "Loved every mile", "rating": 5})

	t.Run("non-owner is rejected before validation", func(t *testing.T) {
		rr := executeRequest(jsonRequest(t, http.MethodPut, "/api/reviews/"+rv.ID, annToken, map[string]any{"rating": 9}), mux)
		require.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "Not authorized to update this review", decodeError(t, rr).Message)

		rr = executeRequest(jsonRequest(t, http.MethodDelete, "/api/reviews/"+rv.ID, annToken, nil), mux)
		require.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "Not authorized to delete this review", decodeError(t, rr).Message)
	})

	t.Run("owner edit is flagged", func(t *testing.T) {
		rr := executeRequest(jsonRequest(t, http.MethodPut, "/api/reviews/"+rv.ID, bobToken, map[string]any{
			"comment": "Loved most miles", "rating": 4, "travelType": "Family",
		}), mux)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var updated reviews.Review
		decodeData(t, rr, &updated)
		assert.Equal(t, 4, updated.Rating)
		assert.Equal(t, reviews.Family, updated.TravelType)
		assert.True(t, updated.IsEdited)
		assert.NotNil(t, updated.EditedAt)
	})

	t.Run("helpful toggles", func(t *testing.T) {
		path := "/api/reviews/" + rv.ID + "/helpful"
		rr := executeRequest(jsonRequest(t, http.MethodPut, path, annToken, nil), mux)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var resp HelpfulResponse
		decodeData(t, rr, &resp)
		assert.True(t, resp.Marked)
		assert.Len(t, resp.Helpful, 1)

		rr = executeRequest(jsonRequest(t, http.MethodPut, path, annToken, nil), mux)
		decodeData(t, rr, &resp)
		assert.False(t, resp.Marked)
		assert.Empty(t, resp.Helpful)
	})

	t.Run("owner deletes", func(t *testing.T) {
		rr := executeRequest(jsonRequest(t, http.MethodDelete, "/api/reviews/"+rv.ID, bobToken, nil), mux)
		require.Equal(t, http.StatusNoContent, rr.Code)

		rr = executeRequest(jsonRequest(t, http.MethodPut, "/api/reviews/"+rv.ID+"/helpful", annToken, nil), mux)
		require.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Review not found", decodeError(t, rr).Message)
	})
}
