package main

import (
	"errors"
	"net/http"
	"time"

	"roadtrip/internal/domain/users"
	"roadtrip/internal/mailer"
)

// ErrorBadRequestResponse represents the standard error format for bad request API responses.
//
//	@name			ErrorBadRequestResponse
//	@description	Standard error response format returned by all bad request API endpoints
type ErrorBadRequestResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"password must be at least 6 characters"`
	Status  int    `json:"status" example:"400"`
}

// ErrorUnauthorizedResponse is returned when a token or credentials are rejected.
//
//	@name	ErrorUnauthorizedResponse
type ErrorUnauthorizedResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"No token provided, authorization denied"`
	Status  int    `json:"status" example:"401"`
}

// ErrorInternalServerResponse represents the standard error format for internal server API responses.
//
//	@name			ErrorInternalServerResponse
//	@description	Standard error response format returned by all internal server error API endpoints
type ErrorInternalServerResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"the server encountered a problem"`
	Status  int    `json:"status" example:"500"`
}

type RegisterUserPayload struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Username string `json:"username" validate:"required,min=3,max=20,username"`
	Email    string `json:"email" validate:"required,emailaddr,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginPayload struct {
	Email    string `json:"email" validate:"required,emailaddr"`
	Password string `json:"password" validate:"required"`
}

type authUser struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

type AuthResponse struct {
	Token string   `json:"token"`
	User  authUser `json:"user"`
}

func newAuthResponse(token string, u *users.User) AuthResponse {
	return AuthResponse{
		Token: token,
		User: authUser{
			ID:        u.ID,
			Name:      u.Name,
			Username:  u.Username,
			Email:     u.Email,
			LastLogin: u.LastLogin,
		},
	}
}

// registerUserHandler godoc
//
//	@Summary		Registers a user
//	@Description	Creates an account and returns a session token. A welcome email is sent in the background.
//	@Tags			authentication
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RegisterUserPayload			true	"User credentials"
//	@Success		201		{object}	AuthResponse				"User registered"
//	@Failure		400		{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		500		{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Router			/auth/register [post]
func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload RegisterUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	emailTaken, usernameTaken, err := app.store.Users.Exists(ctx, payload.Email, payload.Username)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	switch {
	case emailTaken:
		app.conflictResponse(w, r, "Email already exists")
		return
	case usernameTaken:
		app.conflictResponse(w, r, "Username already exists")
		return
	}

	user := &users.User{
		Name:     payload.Name,
		Username: users.Normalize(payload.Username),
		Email:    users.Normalize(payload.Email),
		IsActive: true,
	}
	// hash the user password.
	if err := user.Password.Set(payload.Password); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	// the unique indexes still catch a concurrent registration
	if err := app.store.Users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, users.ErrDuplicateEmail):
			app.conflictResponse(w, r, "Email already exists")
		case errors.Is(err, users.ErrDuplicateUsername):
			app.conflictResponse(w, r, "Username already exists")
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	token, err := app.authenticator.GenerateToken(user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.sendWelcomeEmail(user)

	if err := app.jsonResponse(w, http.StatusCreated, newAuthResponse(token, user)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) sendWelcomeEmail(user *users.User) {
	vars := struct {
		Name     string
		Username string
		AppURL   string
	}{
		Name:     user.Name,
		Username: user.Username,
		AppURL:   app.config.frontendURL,
	}

	app.background(func() {
		attempts, err := app.mailer.Send(mailer.UserWelcomeTemplate, user.Username, user.Email, vars)
		if err != nil {
			app.logger.Errorw("error sending welcome email", "user_id", user.ID, "attempts", attempts, "error", err.Error())
			return
		}
		app.logger.Infow("welcome email sent", "user_id", user.ID, "attempts", attempts)
	})
}

// loginHandler godoc
//
//	@Summary		Logs a user in
//	@Description	Checks the credentials and returns a fresh session token.
//	@Tags			authentication
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		LoginPayload				true	"User credentials"
//	@Success		200		{object}	AuthResponse				"Token"
//	@Failure		400		{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		401		{object}	ErrorUnauthorizedResponse	"Invalid email or password"
//	@Failure		500		{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Router			/auth/login [post]
func (app *application) loginHandler(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	// missing user and wrong password answer the same way
	user, err := app.store.Users.GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			app.unauthorizedErrorResponse(w, r, "Invalid email or password", err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := user.Password.Compare(payload.Password); err != nil {
		app.unauthorizedErrorResponse(w, r, "Invalid email or password", err)
		return
	}

	if !user.IsActive {
		app.unauthorizedErrorResponse(w, r, msgAccountClosed, nil)
		return
	}

	now := time.Now().UTC()
	if err := app.store.Users.SetLastLogin(ctx, user.ID, now); err != nil {
		app.internalServerError(w, r, err)
		return
	}
	user.LastLogin = &now

	token, err := app.authenticator.GenerateToken(user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, newAuthResponse(token, user)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// profileHandler godoc
//
//	@Summary		Current user
//	@Description	Returns the authenticated user with created trips, saved trips, followers and following.
//	@Tags			authentication
//	@Produce		json
//	@Success		200	{object}	users.Profile
//	@Failure		401	{object}	ErrorUnauthorizedResponse
//	@Security		ApiKeyAuth
//	@Router			/auth/profile [get]
func (app *application) profileHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	profile, err := app.store.Profile(r.Context(), user)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, profile); err != nil {
		app.internalServerError(w, r, err)
	}
}
