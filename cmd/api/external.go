package main

import (
	"net/http"
	"strconv"
)

type RoutePayload struct {
	StartLocationName string `json:"startLocationName" validate:"max=200"`
	EndLocationName   string `json:"endLocationName" validate:"max=200"`
	Profile           string `json:"profile" validate:"omitempty,max=50"`
}

// intQuery returns 0 for an absent parameter so the adapters apply their
// defaults.
func intQuery(r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// currentWeatherHandler godoc
//
//	@Summary		Current weather
//	@Tags			external
//	@Produce		json
//	@Param			location	query		string	true	"Place name"
//	@Success		200			{object}	weather.Current
//	@Failure		400			{object}	ErrorBadRequestResponse
//	@Failure		404			{object}	ErrorBadRequestResponse
//	@Failure		408			{object}	ErrorBadRequestResponse
//	@Router			/weather [get]
func (app *application) currentWeatherHandler(w http.ResponseWriter, r *http.Request) {
	current, err := app.weather.Current(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		app.externalErrorResponse(w, r, err, "Failed to fetch weather data")
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, current); err != nil {
		app.internalServerError(w, r, err)
	}
}

// forecastHandler godoc
//
//	@Summary		Weather forecast
//	@Tags			external
//	@Produce		json
//	@Param			location	query		string	true	"Place name"
//	@Param			days		query		int		false	"Days (default 3, max 7)"
//	@Success		200			{object}	weather.Forecast
//	@Failure		400			{object}	ErrorBadRequestResponse
//	@Failure		404			{object}	ErrorBadRequestResponse
//	@Failure		408			{object}	ErrorBadRequestResponse
//	@Router			/weather/forecast [get]
func (app *application) forecastHandler(w http.ResponseWriter, r *http.Request) {
	days, ok := intQuery(r, "days")
	if !ok || days < 0 {
		app.badRequestMessage(w, r, "Days must be a positive number")
		return
	}

	forecast, err := app.weather.Forecast(r.Context(), r.URL.Query().Get("location"), days)
	if err != nil {
		app.externalErrorResponse(w, r, err, "Failed to fetch weather forecast")
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, forecast); err != nil {
		app.internalServerError(w, r, err)
	}
}

// nearbyPlacesHandler godoc
//
//	@Summary		Places near a location
//	@Tags			external
//	@Produce		json
//	@Param			location	query		string	true	"Place name"
//	@Param			radius		query		int		false	"Radius in meters (default 5000)"
//	@Param			limit		query		int		false	"Maximum places (default 6, max 20)"
//	@Success		200			{object}	places.Result
//	@Failure		400			{object}	ErrorBadRequestResponse
//	@Failure		404			{object}	ErrorBadRequestResponse
//	@Failure		408			{object}	ErrorBadRequestResponse
//	@Router			/places [get]
func (app *application) nearbyPlacesHandler(w http.ResponseWriter, r *http.Request) {
	radius, ok := intQuery(r, "radius")
	if !ok {
		app.badRequestMessage(w, r, "Radius must be a number")
		return
	}
	limit, ok := intQuery(r, "limit")
	if !ok {
		app.badRequestMessage(w, r, "Limit must be a number")
		return
	}

	result, err := app.places.Nearby(r.Context(), r.URL.Query().Get("location"), radius, limit)
	if err != nil {
		app.externalErrorResponse(w, r, err, "Failed to fetch nearby places")
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, result); err != nil {
		app.internalServerError(w, r, err)
	}
}

// routeHandler godoc
//
//	@Summary		Route between two places
//	@Description	Geocodes both names and returns distance (km), duration (hours), path and turn instructions.
//	@Tags			external
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RoutePayload	true	"Endpoints"
//	@Success		200		{object}	routing.Route
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		404		{object}	ErrorBadRequestResponse
//	@Failure		408		{object}	ErrorBadRequestResponse
//	@Router			/route [post]
func (app *application) routeHandler(w http.ResponseWriter, r *http.Request) {
	var payload RoutePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	route, err := app.routes.Route(r.Context(), payload.StartLocationName, payload.EndLocationName, payload.Profile)
	if err != nil {
		app.externalErrorResponse(w, r, err, "Failed to calculate route")
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, route); err != nil {
		app.internalServerError(w, r, err)
	}
}
