package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"roadtrip/internal/domain/followers"
	"roadtrip/internal/domain/users"
	"roadtrip/internal/imagestore"
	"roadtrip/internal/params"
)

type userKey string

const userCtx userKey = "user"

func getUserFromContext(r *http.Request) *users.User {
	if user, ok := r.Context().Value(userCtx).(*users.User); ok {
		return user
	}
	return nil
}

// currentUserID is empty for anonymous requests.
func currentUserID(r *http.Request) string {
	if user := getUserFromContext(r); user != nil {
		return user.ID
	}
	return ""
}

type UserListResponse struct {
	Users      []users.User      `json:"users"`
	Pagination params.Pagination `json:"pagination"`
}

type UpdateUserPayload struct {
	Name     *string `json:"name" validate:"omitnil,min=2,max=50"`
	Username *string `json:"username" validate:"omitnil,min=3,max=20,username"`
	Bio      *string `json:"bio" validate:"omitnil,max=500"`
	Avatar   *string `json:"avatar" validate:"omitnil,max=500"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// createUserHandler godoc
//
//	@Summary		Registers a user (deprecated)
//	@Description	Alias of POST /auth/register kept for older clients. Responses carry a Deprecation header.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RegisterUserPayload	true	"User credentials"
//	@Success		201		{object}	AuthResponse
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Deprecated
//	@Router			/users [post]
func (app *application) createUserHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Deprecation", "true")
	w.Header().Set("Link", `</api/auth/register>; rel="successor-version"`)
	app.registerUserHandler(w, r)
}

// listUsersHandler godoc
//
//	@Summary		List users
//	@Tags			users
//	@Produce		json
//	@Param			page	query		int	false	"Page (default 1)"
//	@Param			limit	query		int	false	"Page size (default 20, max 50)"
//	@Success		200		{object}	UserListResponse
//	@Failure		401		{object}	ErrorUnauthorizedResponse
//	@Security		ApiKeyAuth
//	@Router			/users [get]
func (app *application) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	p := params.ParsePagination(r.URL.Query(), params.DefaultUserLimit)

	list, total, err := app.store.Users.List(r.Context(), p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := app.jsonResponse(w, http.StatusOK, UserListResponse{Users: list, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getUserProfileHandler godoc
//
//	@Summary		Public profile
//	@Tags			users
//	@Produce		json
//	@Param			userID	path		string	true	"User ID"
//	@Success		200		{object}	users.Profile
//	@Failure		404		{object}	ErrorBadRequestResponse
//	@Router			/users/profile/{userID} [get]
func (app *application) getUserProfileHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := app.store.Users.GetByID(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			app.notFoundResponse(w, r, "User not found")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	profile, err := app.store.Profile(ctx, user)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, profile); err != nil {
		app.internalServerError(w, r, err)
	}
}

// loadSelf fetches the user named in the path and checks it is the caller.
// It writes the error response itself and returns nil on failure.
func (app *application) loadSelf(w http.ResponseWriter, r *http.Request, action string) *users.User {
	target := chi.URLParam(r, "userID")
	if target != currentUserID(r) {
		app.forbiddenResponse(w, r, "Not authorized to "+action+" this profile")
		return nil
	}

	user, err := app.store.Users.GetByID(r.Context(), target)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			app.notFoundResponse(w, r, "User not found")
			return nil
		}
		app.internalServerError(w, r, err)
		return nil
	}
	return user
}

// updateUserHandler godoc
//
//	@Summary		Update own profile
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			userID	path		string				true	"User ID"
//	@Param			payload	body		UpdateUserPayload	true	"Fields to change"
//	@Success		200		{object}	users.User
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		403		{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/users/profile/{userID} [put]
func (app *application) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	user := app.loadSelf(w, r, "update")
	if user == nil {
		return
	}

	var payload UpdateUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	if payload.Name != nil {
		user.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Username != nil && users.Normalize(*payload.Username) != user.Username {
		_, taken, err := app.store.Users.Exists(ctx, "", *payload.Username)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		if taken {
			app.conflictResponse(w, r, "Username already exists")
			return
		}
		user.Username = users.Normalize(*payload.Username)
	}
	if payload.Bio != nil {
		user.Bio = strings.TrimSpace(*payload.Bio)
	}
	if payload.Avatar != nil {
		user.Avatar = strings.TrimSpace(*payload.Avatar)
	}

	if err := app.store.Users.Update(ctx, user); err != nil {
		if errors.Is(err, users.ErrDuplicateUsername) {
			app.conflictResponse(w, r, "Username already exists")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, user); err != nil {
		app.internalServerError(w, r, err)
	}
}

// uploadAvatarHandler godoc
//
//	@Summary		Upload own avatar
//	@Description	Multipart upload of a single image in field "avatar". The previous avatar is removed from storage.
//	@Tags			users
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			userID	path		string	true	"User ID"
//	@Param			avatar	formData	file	true	"Avatar image"
//	@Success		200		{object}	users.User
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		403		{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/users/profile/{userID}/avatar [put]
func (app *application) uploadAvatarHandler(w http.ResponseWriter, r *http.Request) {
	defer removeMultipartFiles(r)

	user := app.loadSelf(w, r, "update")
	if user == nil {
		return
	}

	form, err := parseImageForm(w, r, "avatar", 1)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if len(form.files) != 1 {
		app.badRequestMessage(w, r, "avatar is required")
		return
	}

	ctx := r.Context()

	urls, err := imagestore.UploadAll(ctx, app.images, form.files)
	if err != nil {
		app.uploadErrorResponse(w, r, err)
		return
	}

	previous := user.Avatar
	user.Avatar = urls[0]
	if err := app.store.Users.Update(ctx, user); err != nil {
		app.discardImages(urls)
		app.internalServerError(w, r, err)
		return
	}
	if previous != "" {
		app.discardImages([]string{previous})
	}

	if err := app.jsonResponse(w, http.StatusOK, user); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteUserHandler godoc
//
//	@Summary		Delete own account
//	@Description	Removes the account together with its trips, comments, reviews and follow edges.
//	@Tags			users
//	@Produce		json
//	@Param			userID	path		string	true	"User ID"
//	@Success		200		{object}	messageResponse
//	@Failure		403		{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/users/profile/{userID} [delete]
func (app *application) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	user := app.loadSelf(w, r, "delete")
	if user == nil {
		return
	}

	ctx := r.Context()

	// collect image URLs before the rows disappear
	var images []string
	if user.Avatar != "" {
		images = append(images, user.Avatar)
	}
	tripIDs, err := app.store.RoadTrips.IDsByOwner(ctx, user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	for _, id := range tripIDs {
		trip, err := app.store.RoadTrips.GetByID(ctx, id)
		if err != nil {
			continue
		}
		images = append(images, trip.Images...)
	}

	if err := app.store.DeleteUser(ctx, user.ID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			app.notFoundResponse(w, r, "User not found")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.discardImages(images)

	if err := app.jsonResponse(w, http.StatusOK, messageResponse{Message: "User deleted successfully"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// followUserHandler godoc
//
//	@Summary		Follow a user
//	@Tags			users
//	@Produce		json
//	@Param			userID	path		string	true	"User ID to follow"
//	@Success		200		{object}	messageResponse
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		404		{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/users/{userID}/follow [put]
func (app *application) followUserHandler(w http.ResponseWriter, r *http.Request) {
	follower := getUserFromContext(r)
	targetID := chi.URLParam(r, "userID")

	if targetID == follower.ID {
		app.badRequestMessage(w, r, "You cannot follow yourself")
		return
	}

	ctx := r.Context()
	if !app.userExists(ctx, w, r, targetID) {
		return
	}

	if err := app.store.Followers.Follow(ctx, follower.ID, targetID); err != nil {
		switch {
		case errors.Is(err, followers.ErrConflict):
			app.conflictResponse(w, r, "You are already following this user")
		case errors.Is(err, followers.ErrSelfFollow):
			app.badRequestMessage(w, r, "You cannot follow yourself")
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, messageResponse{Message: "User followed successfully"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// unfollowUserHandler godoc
//
//	@Summary		Unfollow a user
//	@Tags			users
//	@Produce		json
//	@Param			userID	path		string	true	"User ID to unfollow"
//	@Success		200		{object}	messageResponse
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/users/{userID}/unfollow [put]
func (app *application) unfollowUserHandler(w http.ResponseWriter, r *http.Request) {
	follower := getUserFromContext(r)
	targetID := chi.URLParam(r, "userID")

	ctx := r.Context()
	if !app.userExists(ctx, w, r, targetID) {
		return
	}

	if err := app.store.Followers.Unfollow(ctx, follower.ID, targetID); err != nil {
		if errors.Is(err, followers.ErrNotFollowing) {
			app.badRequestMessage(w, r, "You are not following this user")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, messageResponse{Message: "User unfollowed successfully"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) userExists(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) bool {
	if _, err := app.store.Users.GetByID(ctx, id); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			app.notFoundResponse(w, r, "User not found")
			return false
		}
		app.internalServerError(w, r, err)
		return false
	}
	return true
}

// authors resolves author summaries for ids. Unknown IDs are left out.
func (app *application) authors(ctx context.Context, ids []string) (map[string]users.Summary, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return app.store.Users.Summaries(ctx, unique)
}
