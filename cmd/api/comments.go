package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"roadtrip/internal/domain/comments"
	"roadtrip/internal/events"
	"roadtrip/internal/params"
)

type CreateCommentPayload struct {
	Text          string  `json:"text" validate:"required,max=500"`
	ParentComment *string `json:"parentComment" validate:"omitnil,max=64"`
}

type UpdateCommentPayload struct {
	Text string `json:"text" validate:"required,max=500"`
}

type CommentListResponse struct {
	Comments   []comments.Comment `json:"comments"`
	Pagination params.Pagination  `json:"pagination"`
}

type CommentLikeResponse struct {
	Likes []string `json:"likes"`
	Liked bool     `json:"liked"`
}

// enrichComments fills replies and author summaries.
func (app *application) enrichComments(ctx context.Context, list []comments.Comment) error {
	ids := make([]string, len(list))
	authorIDs := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].ID
		authorIDs[i] = list[i].UserID
	}

	replies, err := app.store.Comments.RepliesFor(ctx, ids)
	if err != nil {
		return err
	}
	summaries, err := app.authors(ctx, authorIDs)
	if err != nil {
		return err
	}

	for i := range list {
		list[i].Replies = replies[list[i].ID]
		if list[i].Replies == nil {
			list[i].Replies = []string{}
		}
		if s, ok := summaries[list[i].UserID]; ok {
			list[i].Author = &s
		}
	}
	return nil
}

func (app *application) loadComment(w http.ResponseWriter, r *http.Request) *comments.Comment {
	comment, err := app.store.Comments.GetByID(r.Context(), chi.URLParam(r, "commentID"))
	if err != nil {
		if errors.Is(err, comments.ErrNotFound) {
			app.notFoundResponse(w, r, "Comment not found")
			return nil
		}
		app.internalServerError(w, r, err)
		return nil
	}
	return comment
}

// listCommentsHandler godoc
//
//	@Summary		List comments of a trip
//	@Tags			comments
//	@Produce		json
//	@Param			tripID	path		string	true	"Trip ID"
//	@Param			page	query		int		false	"Page (default 1)"
//	@Param			limit	query		int		false	"Page size (default 10, max 50)"
//	@Success		200		{object}	CommentListResponse
//	@Failure		404		{object}	ErrorBadRequestResponse
//	@Router			/comments/{tripID} [get]
func (app *application) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	trip := app.loadTrip(w, r)
	if trip == nil {
		return
	}

	p := params.ParsePagination(r.URL.Query(), params.DefaultCommentLimit)
	ctx := r.Context()

	list, total, err := app.store.Comments.ListByTrip(ctx, trip.ID, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if err := app.enrichComments(ctx, list); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, CommentListResponse{Comments: list, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createCommentHandler godoc
//
//	@Summary		Comment on a trip
//	@Description	Set parentComment to reply to a top-level comment of the same trip.
//	@Tags			comments
//	@Accept			json
//	@Produce		json
//	@Param			tripID	path		string					true	"Trip ID"
//	@Param			payload	body		CreateCommentPayload	true	"Comment"
//	@Success		201		{object}	comments.Comment
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		404		{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/comments/{tripID} [post]
func (app *application) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload CreateCommentPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	payload.Text = strings.TrimSpace(payload.Text)
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	trip := app.loadTrip(w, r)
	if trip == nil {
		return
	}

	ctx := r.Context()

	if payload.ParentComment != nil {
		parent, err := app.store.Comments.GetByID(ctx, *payload.ParentComment)
		if err != nil {
			if errors.Is(err, comments.ErrNotFound) {
				app.notFoundResponse(w, r, "Parent comment not found")
				return
			}
			app.internalServerError(w, r, err)
			return
		}
		if parent.TripID != trip.ID {
			app.badRequestMessage(w, r, "Parent comment belongs to another trip")
			return
		}
		// threads are one level deep
		if parent.ParentID != nil {
			app.badRequestMessage(w, r, "Cannot reply to a reply")
			return
		}
	}

	comment := &comments.Comment{
		Text:     payload.Text,
		UserID:   user.ID,
		TripID:   trip.ID,
		ParentID: payload.ParentComment,
	}
	if err := app.store.Comments.Create(ctx, comment); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	summary := user.Summary()
	comment.Author = &summary

	app.publish(events.SubjectCommentCreated, events.CommentCreated{
		CommentID: comment.ID,
		TripID:    trip.ID,
		AuthorID:  user.ID,
		ParentID:  comment.ParentID,
		Timestamp: comment.CreatedAt,
	})

	if err := app.jsonResponse(w, http.StatusCreated, comment); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateCommentHandler godoc
//
//	@Summary		Edit a comment
//	@Description	Owner only. The comment is flagged as edited when the text changes.
//	@Tags			comments
//	@Accept			json
//	@Produce		json
//	@Param			commentID	path		string					true	"Comment ID"
//	@Param			payload		body		UpdateCommentPayload	true	"New text"
//	@Success		200			{object}	comments.Comment
//	@Failure		400			{object}	ErrorBadRequestResponse
//	@Failure		403			{object}	ErrorBadRequestResponse
//	@Failure		404			{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/comments/{commentID} [put]
func (app *application) updateCommentHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	comment := app.loadComment(w, r)
	if comment == nil {
		return
	}
	if !comment.IsOwner(user.ID) {
		app.forbiddenResponse(w, r, "Not authorized to update this comment")
		return
	}

	var payload UpdateCommentPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	payload.Text = strings.TrimSpace(payload.Text)
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	updated, err := app.store.Comments.UpdateText(ctx, comment.ID, payload.Text)
	if err != nil {
		if errors.Is(err, comments.ErrNotFound) {
			app.notFoundResponse(w, r, "Comment not found")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	list := []comments.Comment{*updated}
	if err := app.enrichComments(ctx, list); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, list[0]); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteCommentHandler godoc
//
//	@Summary		Delete a comment
//	@Description	Owner only. Replies are deleted with it.
//	@Tags			comments
//	@Param			commentID	path	string	true	"Comment ID"
//	@Success		204
//	@Failure		403	{object}	ErrorBadRequestResponse
//	@Failure		404	{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/comments/{commentID} [delete]
func (app *application) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	comment := app.loadComment(w, r)
	if comment == nil {
		return
	}
	if !comment.IsOwner(user.ID) {
		app.forbiddenResponse(w, r, "Not authorized to delete this comment")
		return
	}

	if err := app.store.Comments.Delete(r.Context(), comment.ID); err != nil {
		if errors.Is(err, comments.ErrNotFound) {
			app.notFoundResponse(w, r, "Comment not found")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// likeCommentHandler godoc
//
//	@Summary		Like or unlike a comment
//	@Tags			comments
//	@Produce		json
//	@Param			commentID	path		string	true	"Comment ID"
//	@Success		200			{object}	CommentLikeResponse
//	@Failure		404			{object}	ErrorBadRequestResponse
//	@Security		ApiKeyAuth
//	@Router			/comments/{commentID}/like [put]
func (app *application) likeCommentHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	likes, liked, err := app.store.Comments.ToggleLike(r.Context(), chi.URLParam(r, "commentID"), user.ID)
	if err != nil {
		if errors.Is(err, comments.ErrNotFound) {
			app.notFoundResponse(w, r, "Comment not found")
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, CommentLikeResponse{Likes: likes, Liked: liked}); err != nil {
		app.internalServerError(w, r, err)
	}
}
