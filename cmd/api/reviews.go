package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"roadtrip/internal/domain/reviews"
	"roadtrip/internal/events"
	"roadtrip/internal/params"
)

type ReviewPayload struct {
	Comment    string     `json:"comment" validate:"required,min=5,max=1000"`
	Rating     int        `json:"rating" validate:"required,gte=1,lte=5"`
	TripDate   *time.Time `json:"tripDate"`
	TravelType string     `json:"travelType" validate:"omitempty,oneof=Solo Couple Family Friends Business"`
	Images     []string   `json:"images" validate:"max=5,dive,max=500"`
}

type ReviewListResponse struct {
	Reviews    []reviews.Review  `json:"reviews"`
	Pagination params.Pagination `json:"pagination"`
	Stats      reviews.Stats     `json:"stats"`
}

type HelpfulResponse struct {
	Helpful []string `json:"helpful"`
	Marked  bool     `json:"marked"`
}

// readReviewPayload decodes and validates the body, answering 400 itself when
// it returns false.
func (app *application) readReviewPayload(w http.ResponseWriter, r *http.Request) (ReviewPayload, bool) {
	var payload ReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return payload, false
	}
	payload.Comment = strings.TrimSpace(payload.Comment)
	if err := Validate.Struct(payload); err != nil {
		app.badRequestMessage(w, r, reviewValidationMessage(err))
		return payload, false
	}
	return payload, true
}

func reviewValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch fe := verrs[0]; fe.Field() {
		case "comment":
			if fe.Tag() == "max" {
				return "Review comment must be less than 1000 characters"
			}
			return "Review comment must be at least 5 characters long"
		case "rating":
			return "Rating must be between 1 and 5"
		}
	}
	return validationMessage(err)
}

func (app *application) withReviewAuthors(ctx context.Context, list []reviews.Review) error {
	ids := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].UserID
	}
	summaries, err := app.authors(ctx, ids)
	if err != nil {
		return err
	}
	for i := range list {
		if s, ok := summaries[list[i].UserID]; ok {
			list[i].Author = &s
		}
	}
	return nil
}

func (app *application) loadReview(w http.ResponseWriter, r *http.Request) *reviews.Review {
	review, err := app.store.Reviews.GetByID(r.Context(), chi.URLParam(r, "reviewID"))
	if err != nil {
		if errors.Is(err, reviews.ErrNotFound) {
			app.notFoundResponse(w, r, "Review not found")
			return nil
		}
		app.internalServerError(w, r, err)
		return nil
	}
	return review
}

// listReviewsHandler godoc
//
//	@Summary		List reviews of a trip
//	@Description	Paginated reviews, newest first, with the trip's average rating.
//	@Tags			reviews
//	@Produce		json
//	@Param			tripID	path		string	true	"Trip ID"
//	@Param			page	query		int		false	"Page (default 1)"
//	@Param			limit	query		int		false	"Page size (default 10, max 50)"
//	@Success		200		{object}	ReviewListResponse
//	@Failure		404		{object}	ErrorBadRequestResponse
//	@Router			/reviews/trip/{tripID} [get]
func (app *application) listReviewsHandler(w http.ResponseWriter, r *http.Request) {
	trip := app.loadTrip(w, r)
	if trip == nil {
		return
	}

	p := params.ParsePagination(r.URL.Query(), params.DefaultReviewLimit)
	tripID := trip.ID

	var (
		list  []reviews.Review
		total int
		stats reviews.Stats
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		list, total, err = app.store.Reviews.ListByTrip(ctx, tripID, p.Limit, p.Offset)
		if err != nil {
			return err
		}
		return app.withReviewAuthors(ctx, list)
	})
	g.Go(func() (err error) {
		stats, err = app.store.Reviews.Stats(ctx, tripID)
		return err
	})
	if err := g.Wait(); err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := app.jsonResponse(w, http.StatusOK, ReviewListResponse{Reviews: list, Pagination: p, Stats: stats}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createReviewHandler godoc
//
//	@Summary		Review a trip
//	@Description	One review per user and trip.
//	@Tags			reviews
//	@Accept			json
//	@Produce		json
//	@Param			tripID	path		string			true	"Trip ID"
//	@Param			payload	body		ReviewPayload	true	"Review"
//	@Success		201		{object}	reviews.Review
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		404		{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/reviews/{tripID} [post]
func (app *application) createReviewHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	payload, ok := app.readReviewPayload(w, r)
	if !ok {
		return
	}

	trip := app.loadTrip(w, r)
	if trip == nil {
		return
	}

	ctx := r.Context()

	exists, err := app.store.Reviews.HasReview(ctx, trip.ID, user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if exists {
		app.conflictResponse(w, r, "You have already reviewed this trip")
		return
	}

	review := &reviews.Review{
		Comment:    payload.Comment,
		Rating:     payload.Rating,
		UserID:     user.ID,
		TripID:     trip.ID,
		Images:     payload.Images,
		TripDate:   payload.TripDate,
		TravelType: reviews.TravelType(payload.TravelType),
	}
	if err := app.store.Reviews.Create(ctx, review); err != nil {
		if errors.Is(err, reviews.ErrDuplicateReview) {
			app.conflictResponse(w, r, "You have already reviewed this trip")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	summary := user.Summary()
	review.Author = &summary

	app.publish(events.SubjectReviewCreated, events.ReviewCreated{
		ReviewID:  review.ID,
		TripID:    trip.ID,
		AuthorID:  user.ID,
		Rating:    review.Rating,
		Timestamp: review.CreatedAt,
	})

	if err := app.jsonResponse(w, http.StatusCreated, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateReviewHandler godoc
//
//	@Summary		Edit a review
//	@Description	Owner only. The review is flagged as edited when comment or rating change.
//	@Tags			reviews
//	@Accept			json
//	@Produce		json
//	@Param			reviewID	path		string			true	"Review ID"
//	@Param			payload		body		ReviewPayload	true	"Review"
//	@Success		200			{object}	reviews.Review
//	@Failure		400			{object}	ErrorBadRequestResponse
//	@Failure		403			{object}	ErrorBadRequestResponse
//	@Failure		404			{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID} [put]
func (app *application) updateReviewHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	review := app.loadReview(w, r)
	if review == nil {
		return
	}
	if !review.IsOwner(user.ID) {
		app.forbiddenResponse(w, r, "Not authorized to update this review")
		return
	}

	payload, ok := app.readReviewPayload(w, r)
	if !ok {
		return
	}

	review.Edit(payload.Comment, payload.Rating, time.Now().UTC())
	if payload.TripDate != nil {
		review.TripDate = payload.TripDate
	}
	if payload.TravelType != "" {
		review.TravelType = reviews.TravelType(payload.TravelType)
	}
	if payload.Images != nil {
		review.Images = payload.Images
	}

	ctx := r.Context()
	if err := app.store.Reviews.Update(ctx, review); err != nil {
		if errors.Is(err, reviews.ErrNotFound) {
			app.notFoundResponse(w, r, "Review not found")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	summary := user.Summary()
	review.Author = &summary

	if err := app.jsonResponse(w, http.StatusOK, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteReviewHandler godoc
//
//	@Summary		Delete a review
//	@Tags			reviews
//	@Param			reviewID	path	string	true	"Review ID"
//	@Success		204
//	@Failure		403	{object}	ErrorBadRequestResponse
//	@Failure		404	{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID} [delete]
func (app *application) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	review := app.loadReview(w, r)
	if review == nil {
		return
	}
	if !review.IsOwner(user.ID) {
		app.forbiddenResponse(w, r, "Not authorized to delete this review")
		return
	}

	if err := app.store.Reviews.Delete(r.Context(), review.ID); err != nil {
		if errors.Is(err, reviews.ErrNotFound) {
			app.notFoundResponse(w, r, "Review not found")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// helpfulReviewHandler godoc
//
//	@Summary		Toggle a helpful vote
//	@Tags			reviews
//	@Produce		json
//	@Param			reviewID	path		string	true	"Review ID"
//	@Success		200			{object}	HelpfulResponse
//	@Failure		404			{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID}/helpful [put]
func (app *application) helpfulReviewHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	helpful, marked, err := app.store.Reviews.ToggleHelpful(r.Context(), chi.URLParam(r, "reviewID"), user.ID)
	if err != nil {
		if errors.Is(err, reviews.ErrNotFound) {
			app.notFoundResponse(w, r, "Review not found")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, HelpfulResponse{Helpful: helpful, Marked: marked}); err != nil {
		app.internalServerError(w, r, err)
	}
}
