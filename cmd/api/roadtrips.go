package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"roadtrip/internal/domain/reviews"
	"roadtrip/internal/domain/roadtrips"
	"roadtrip/internal/events"
	"roadtrip/internal/imagestore"
	"roadtrip/internal/params"
)

const maxSearchResults = 20

type CoordinatesPayload struct {
	Latitude  *float64 `json:"latitude" validate:"omitnil,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitnil,gte=-180,lte=180"`
}

type StopPayload struct {
	LocationName      string              `json:"locationName" validate:"required,max=200"`
	Description       string              `json:"description" validate:"max=500"`
	Coordinates       *CoordinatesPayload `json:"coordinates"`
	EstimatedDuration string              `json:"estimatedDuration" validate:"max=100"`
	Attractions       []string            `json:"attractions" validate:"max=50,dive,max=200"`
}

type BudgetPayload struct {
	Min      *float64 `json:"min" validate:"omitnil,gte=0"`
	Max      *float64 `json:"max" validate:"omitnil,gte=0"`
	Currency string   `json:"currency" validate:"omitempty,len=3"`
}

func (b *BudgetPayload) check() error {
	if b != nil && b.Min != nil && b.Max != nil && *b.Min > *b.Max {
		return errors.New("budget minimum cannot exceed the maximum")
	}
	return nil
}

type CreateRoadTripPayload struct {
	Title       string         `json:"title" validate:"required,min=3,max=100"`
	Description string         `json:"description" validate:"required,min=10,max=2000"`
	CoverImage  string         `json:"coverImage" validate:"max=500"`
	Images      []string       `json:"images" validate:"max=5,dive,max=500"`
	Route       []StopPayload  `json:"route" validate:"max=50,dive"`
	Tags        []string       `json:"tags" validate:"max=20,dive,max=30"`
	Difficulty  string         `json:"difficulty" validate:"omitempty,oneof=Easy Medium Hard Expert"`
	Duration    string         `json:"duration" validate:"max=100"`
	Season      []string       `json:"season" validate:"max=4,dive,oneof=Spring Summer Autumn Winter"`
	Budget      *BudgetPayload `json:"budget"`
	IsPublic    *bool          `json:"isPublic"`
	Status      string         `json:"status" validate:"omitempty,oneof=draft published archived"`
	// CreatedBy is accepted for older clients and ignored. The owner always
	// comes from the token.
	CreatedBy string `json:"createdBy"`
}

type UpdateRoadTripPayload struct {
	Title       *string        `json:"title" validate:"omitnil,min=3,max=100"`
	Description *string        `json:"description" validate:"omitnil,min=10,max=2000"`
	CoverImage  *string        `json:"coverImage" validate:"omitnil,max=500"`
	Route       []StopPayload  `json:"route" validate:"omitnil,max=50,dive"`
	Tags        []string       `json:"tags" validate:"omitnil,max=20,dive,max=30"`
	Difficulty  *string        `json:"difficulty" validate:"omitnil,oneof=Easy Medium Hard Expert"`
	Duration    *string        `json:"duration" validate:"omitnil,max=100"`
	Season      []string       `json:"season" validate:"omitnil,max=4,dive,oneof=Spring Summer Autumn Winter"`
	Budget      *BudgetPayload `json:"budget"`
	IsPublic    *bool          `json:"isPublic"`
	Status      *string        `json:"status" validate:"omitnil,oneof=draft published archived"`
	CreatedBy   string         `json:"createdBy"`
}

type RoadTripListResponse struct {
	Trips      []roadtrips.RoadTrip `json:"trips"`
	Pagination params.Pagination    `json:"pagination"`
}

// RoadTripDetail is a trip with the counts computed from its children.
type RoadTripDetail struct {
	*roadtrips.RoadTrip
	CommentCount int           `json:"commentCount"`
	Rating       reviews.Stats `json:"rating"`
}

type LikeResponse struct {
	Likes []string `json:"likes"`
	Liked bool     `json:"liked"`
}

type SaveResponse struct {
	Saves []string `json:"saves"`
	Saved bool     `json:"saved"`
}

// form fields carrying JSON documents
var tripJSONFields = []string{"route", "tags", "season", "budget", "images"}

// formToPayload maps multipart values onto dst through JSON so form and JSON
// bodies share the same payload types and validation.
func formToPayload(form imageForm, dst any) error {
	doc := make(map[string]any, len(form.values))
	for key := range form.values {
		v, _ := form.value(key)
		v = strings.TrimSpace(v)

		switch {
		case slices.Contains(tripJSONFields, key):
			if v == "" {
				continue
			}
			if key == "tags" && !strings.HasPrefix(v, "[") {
				doc[key] = strings.Split(v, ",")
				continue
			}
			if !json.Valid([]byte(v)) {
				return fmt.Errorf("Invalid %s data format.", key)
			}
			doc[key] = json.RawMessage(v)
		case key == "isPublic":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.New("isPublic must be true or false")
			}
			doc[key] = b
		default:
			doc[key] = v
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid form data: %w", err)
	}
	return nil
}

// readTripPayload decodes a JSON or multipart body into dst and returns the
// checked image files of a multipart request.
func readTripPayload(w http.ResponseWriter, r *http.Request, dst any) ([]imagestore.File, error) {
	if !isMultipart(r) {
		return nil, readJSON(w, r, dst)
	}

	form, err := parseImageForm(w, r, "images", maxImageFiles)
	if err != nil {
		return nil, err
	}
	if err := formToPayload(form, dst); err != nil {
		return nil, err
	}
	return form.files, nil
}

func toStops(in []StopPayload) []roadtrips.Stop {
	out := make([]roadtrips.Stop, len(in))
	for i, s := range in {
		stop := roadtrips.Stop{
			LocationName:      strings.TrimSpace(s.LocationName),
			Description:       strings.TrimSpace(s.Description),
			EstimatedDuration: strings.TrimSpace(s.EstimatedDuration),
			Attractions:       s.Attractions,
		}
		if s.Coordinates != nil {
			stop.Coordinates = &roadtrips.Coordinates{Latitude: s.Coordinates.Latitude, Longitude: s.Coordinates.Longitude}
		}
		out[i] = stop
	}
	return out
}

func toSeasons(in []string) []roadtrips.Season {
	out := make([]roadtrips.Season, len(in))
	for i, s := range in {
		out[i] = roadtrips.Season(s)
	}
	return out
}

func toBudget(in *BudgetPayload) *roadtrips.Budget {
	if in == nil {
		return nil
	}
	return &roadtrips.Budget{Min: in.Min, Max: in.Max, Currency: in.Currency}
}

// withAuthors fills the author summary of every trip.
func (app *application) withAuthors(ctx context.Context, trips []roadtrips.RoadTrip) error {
	ids := make([]string, len(trips))
	for i := range trips {
		ids[i] = trips[i].CreatedBy
	}
	summaries, err := app.authors(ctx, ids)
	if err != nil {
		return err
	}
	for i := range trips {
		if s, ok := summaries[trips[i].CreatedBy]; ok {
			trips[i].Author = &s
		}
	}
	return nil
}

// fetchTrip fetches the trip named in the path regardless of visibility.
// Owner-only handlers use it and answer 403 to everyone else.
func (app *application) fetchTrip(w http.ResponseWriter, r *http.Request) *roadtrips.RoadTrip {
	trip, err := app.store.RoadTrips.GetByID(r.Context(), chi.URLParam(r, "tripID"))
	if err != nil {
		if errors.Is(err, roadtrips.ErrNotFound) {
			app.notFoundResponse(w, r, "Trip not found")
			return nil
		}
		app.internalServerError(w, r, err)
		return nil
	}
	return trip
}

// loadTrip fetches the trip named in the path. Trips the caller may not see
// answer 404 as if they did not exist.
func (app *application) loadTrip(w http.ResponseWriter, r *http.Request) *roadtrips.RoadTrip {
	trip := app.fetchTrip(w, r)
	if trip == nil {
		return nil
	}
	if !trip.VisibleTo(currentUserID(r)) {
		app.notFoundResponse(w, r, "Trip not found")
		return nil
	}
	return trip
}

// listRoadTripsHandler godoc
//
//	@Summary		List road trips
//	@Description	Public, published trips, newest first.
//	@Tags			roadtrips
//	@Produce		json
//	@Param			page	query		int	false	"Page (default 1)"
//	@Param			limit	query		int	false	"Page size (default 12, max 50)"
//	@Success		200		{object}	RoadTripListResponse
//	@Router			/roadtrips [get]
func (app *application) listRoadTripsHandler(w http.ResponseWriter, r *http.Request) {
	app.listTrips(w, r, roadtrips.ListFilter{PublicOnly: true})
}

// myRoadTripsHandler godoc
//
//	@Summary		List own road trips
//	@Description	Every trip of the caller including drafts and private trips.
//	@Tags			roadtrips
//	@Produce		json
//	@Param			page	query		int	false	"Page (default 1)"
//	@Param			limit	query		int	false	"Page size (default 12, max 50)"
//	@Success		200		{object}	RoadTripListResponse
//	@Failure		401		{object}	ErrorUnauthorizedResponse
//	@Security		ApiKeyAuth
//	@Router			/roadtrips/user/mytrips [get]
func (app *application) myRoadTripsHandler(w http.ResponseWriter, r *http.Request) {
	app.listTrips(w, r, roadtrips.ListFilter{OwnerID: currentUserID(r)})
}

func (app *application) listTrips(w http.ResponseWriter, r *http.Request, filter roadtrips.ListFilter) {
	p := params.ParsePagination(r.URL.Query(), params.DefaultTripLimit)
	ctx := r.Context()

	trips, total, err := app.store.RoadTrips.List(ctx, filter, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := app.withAuthors(ctx, trips); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, RoadTripListResponse{Trips: trips, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// searchRoadTripsHandler godoc
//
//	@Summary		Search road trips
//	@Description	Case-insensitive match on title, description and stop names. At most 20 results, newest first.
//	@Tags			roadtrips
//	@Produce		json
//	@Param			q	query		string	true	"Search text"
//	@Success		200	{array}		roadtrips.RoadTrip
//	@Failure		400	{object}	ErrorBadRequestResponse
//	@Router			/roadtrips/search [get]
func (app *application) searchRoadTripsHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		app.badRequestMessage(w, r, "Search query is required")
		return
	}

	ctx := r.Context()

	trips, err := app.store.RoadTrips.Search(ctx, q, maxSearchResults)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if err := app.withAuthors(ctx, trips); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, trips); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getRoadTripHandler godoc
//
//	@Summary		Get a road trip
//	@Description	Counts a view and returns the trip with its comment count and rating.
//	@Tags			roadtrips
//	@Produce		json
//	@Param			tripID	path		string	true	"Trip ID"
//	@Success		200		{object}	RoadTripDetail
//	@Failure		404		{object}	ErrorBadRequestResponse
//	@Router			/roadtrips/{tripID} [get]
func (app *application) getRoadTripHandler(w http.ResponseWriter, r *http.Request) {
	trip := app.loadTrip(w, r)
	if trip == nil {
		return
	}

	detail := RoadTripDetail{RoadTrip: trip}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		if err := app.store.RoadTrips.IncrementViews(ctx, trip.ID); err != nil {
			return fmt.Errorf("increment views: %w", err)
		}
		trip.Views++
		return nil
	})
	g.Go(func() (err error) {
		detail.CommentCount, err = app.store.Comments.CountByTrip(ctx, trip.ID)
		return err
	})
	g.Go(func() (err error) {
		detail.Rating, err = app.store.Reviews.Stats(ctx, trip.ID)
		return err
	})
	g.Go(func() error {
		summaries, err := app.authors(ctx, []string{trip.CreatedBy})
		if err != nil {
			return err
		}
		if s, ok := summaries[trip.CreatedBy]; ok {
			trip.Author = &s
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, detail); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createRoadTripHandler godoc
//
//	@Summary		Create a road trip
//	@Description	Accepts JSON or multipart/form-data. Multipart requests may attach up to 5 images (10MB each) in field "images"; route, tags, season and budget are then JSON-encoded form fields.
//	@Tags			roadtrips
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			payload	body		CreateRoadTripPayload	true	"Trip"
//	@Success		201		{object}	roadtrips.RoadTrip
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		401		{object}	ErrorUnauthorizedResponse
//	@Failure		500		{object}	ErrorInternalServerResponse
//	@Security		ApiKeyAuth
//	@Router			/roadtrips [post]
func (app *application) createRoadTripHandler(w http.ResponseWriter, r *http.Request) {
	defer removeMultipartFiles(r)

	user := getUserFromContext(r)

	var payload CreateRoadTripPayload
	files, err := readTripPayload(w, r, &payload)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	payload.Title = strings.TrimSpace(payload.Title)
	payload.Description = strings.TrimSpace(payload.Description)
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := payload.Budget.check(); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	// every image is stored before the trip exists; a failed upload aborts
	uploaded, err := imagestore.UploadAll(ctx, app.images, files)
	if err != nil {
		app.uploadErrorResponse(w, r, err)
		return
	}

	isPublic := true
	if payload.IsPublic != nil {
		isPublic = *payload.IsPublic
	}

	trip := &roadtrips.RoadTrip{
		Title:       payload.Title,
		Description: payload.Description,
		CoverImage:  strings.TrimSpace(payload.CoverImage),
		Images:      append(slices.Clone(payload.Images), uploaded...),
		Route:       toStops(payload.Route),
		Tags:        payload.Tags,
		Difficulty:  roadtrips.Difficulty(payload.Difficulty),
		Duration:    strings.TrimSpace(payload.Duration),
		Season:      toSeasons(payload.Season),
		Budget:      toBudget(payload.Budget),
		CreatedBy:   user.ID,
		IsPublic:    isPublic,
		Status:      roadtrips.Status(payload.Status),
	}
	trip.ApplyDefaults()

	if err := app.store.RoadTrips.Create(ctx, trip); err != nil {
		app.discardImages(uploaded)
		app.internalServerError(w, r, err)
		return
	}

	summary := user.Summary()
	trip.Author = &summary

	app.publish(events.SubjectTripCreated, events.TripCreated{
		TripID:    trip.ID,
		Title:     trip.Title,
		AuthorID:  user.ID,
		IsPublic:  trip.IsPublic,
		Timestamp: trip.CreatedAt,
	})

	if err := app.jsonResponse(w, http.StatusCreated, trip); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateRoadTripHandler godoc
//
//	@Summary		Update a road trip
//	@Description	Owner only. Images sent with a multipart request are appended to the existing ones.
//	@Tags			roadtrips
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			tripID	path		string					true	"Trip ID"
//	@Param			payload	body		UpdateRoadTripPayload	true	"Fields to change"
//	@Success		200		{object}	roadtrips.RoadTrip
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		403		{object}	ErrorBadRequestResponse
//	@Failure		404		{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/roadtrips/{tripID} [put]
func (app *application) updateRoadTripHandler(w http.ResponseWriter, r *http.Request) {
	defer removeMultipartFiles(r)

	user := getUserFromContext(r)

	trip := app.fetchTrip(w, r)
	if trip == nil {
		return
	}
	if !trip.IsOwner(user.ID) {
		app.forbiddenResponse(w, r, "Not authorized to update this trip")
		return
	}

	var payload UpdateRoadTripPayload
	files, err := readTripPayload(w, r, &payload)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if payload.Title != nil {
		*payload.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		*payload.Description = strings.TrimSpace(*payload.Description)
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := payload.Budget.check(); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	uploaded, err := imagestore.UploadAll(ctx, app.images, files)
	if err != nil {
		app.uploadErrorResponse(w, r, err)
		return
	}

	applyTripUpdate(trip, payload, uploaded)

	if err := app.store.RoadTrips.Update(ctx, trip); err != nil {
		app.discardImages(uploaded)
		if errors.Is(err, roadtrips.ErrNotFound) {
			app.notFoundResponse(w, r, "Trip not found")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	summary := user.Summary()
	trip.Author = &summary

	if err := app.jsonResponse(w, http.StatusOK, trip); err != nil {
		app.internalServerError(w, r, err)
	}
}

func applyTripUpdate(trip *roadtrips.RoadTrip, p UpdateRoadTripPayload, uploaded []string) {
	if p.Title != nil {
		trip.Title = *p.Title
	}
	if p.Description != nil {
		trip.Description = *p.Description
	}
	if p.Route != nil {
		trip.Route = toStops(p.Route)
	}
	if p.Tags != nil {
		trip.Tags = p.Tags
	}
	if p.Difficulty != nil {
		trip.Difficulty = roadtrips.Difficulty(*p.Difficulty)
	}
	if p.Duration != nil {
		trip.Duration = strings.TrimSpace(*p.Duration)
	}
	if p.Season != nil {
		trip.Season = toSeasons(p.Season)
	}
	if p.Budget != nil {
		trip.Budget = toBudget(p.Budget)
	}
	if p.IsPublic != nil {
		trip.IsPublic = *p.IsPublic
	}
	if p.Status != nil {
		trip.Status = roadtrips.Status(*p.Status)
	}

	trip.Images = append(trip.Images, uploaded...)
	switch {
	case p.CoverImage != nil && strings.TrimSpace(*p.CoverImage) != "":
		trip.CoverImage = strings.TrimSpace(*p.CoverImage)
	case len(uploaded) > 0 && (trip.CoverImage == "" || trip.CoverImage == roadtrips.DefaultCoverImage):
		trip.CoverImage = uploaded[0]
	}
	trip.ApplyDefaults()
}

// deleteRoadTripHandler godoc
//
//	@Summary		Delete a road trip
//	@Description	Owner only. Comments and reviews of the trip are deleted with it.
//	@Tags			roadtrips
//	@Param			tripID	path	string	true	"Trip ID"
//	@Success		204
//	@Failure		403	{object}	ErrorBadRequestResponse
//	@Failure		404	{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/roadtrips/{tripID} [delete]
func (app *application) deleteRoadTripHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	trip := app.fetchTrip(w, r)
	if trip == nil {
		return
	}
	if !trip.IsOwner(user.ID) {
		app.forbiddenResponse(w, r, "Not authorized to delete this trip")
		return
	}

	if err := app.store.DeleteRoadTrip(r.Context(), trip.ID); err != nil {
		if errors.Is(err, roadtrips.ErrNotFound) {
			app.notFoundResponse(w, r, "Trip not found")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.discardImages(trip.Images)

	w.WriteHeader(http.StatusNoContent)
}

// likeRoadTripHandler godoc
//
//	@Summary		Like or unlike a road trip
//	@Description	Toggles the caller in the likes set.
//	@Tags			roadtrips
//	@Produce		json
//	@Param			tripID	path		string	true	"Trip ID"
//	@Success		200		{object}	LikeResponse
//	@Failure		404		{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/roadtrips/{tripID}/like [put]
func (app *application) likeRoadTripHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	trip := app.loadTrip(w, r)
	if trip == nil {
		return
	}

	likes, liked, err := app.store.RoadTrips.ToggleLike(r.Context(), trip.ID, user.ID)
	if err != nil {
		if errors.Is(err, roadtrips.ErrNotFound) {
			app.notFoundResponse(w, r, "Trip not found")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.publish(events.SubjectTripLiked, events.TripLiked{
		TripID:    trip.ID,
		UserID:    user.ID,
		Liked:     liked,
		Likes:     len(likes),
		Timestamp: time.Now().UTC(),
	})

	if err := app.jsonResponse(w, http.StatusOK, LikeResponse{Likes: likes, Liked: liked}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// saveRoadTripHandler godoc
//
//	@Summary		Save or unsave a road trip
//	@Tags			roadtrips
//	@Produce		json
//	@Param			tripID	path		string	true	"Trip ID"
//	@Success		200		{object}	SaveResponse
//	@Failure		404		{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/roadtrips/{tripID}/save [put]
func (app *application) saveRoadTripHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	trip := app.loadTrip(w, r)
	if trip == nil {
		return
	}

	saves, saved, err := app.store.RoadTrips.ToggleSave(r.Context(), trip.ID, user.ID)
	if err != nil {
		if errors.Is(err, roadtrips.ErrNotFound) {
			app.notFoundResponse(w, r, "Trip not found")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, SaveResponse{Saves: saves, Saved: saved}); err != nil {
		app.internalServerError(w, r, err)
	}
}
