package main

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string    `json:"status" example:"OK"`
	Message   string    `json:"message" example:"RoadTrip Planner API is running"`
	Version   string    `json:"version" example:"1.0.0"`
	Timestamp time.Time `json:"timestamp"`
}

// healthCheckHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Reports that the API process is up. Does not touch the database.
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	healthResponse
//	@Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Message:   "RoadTrip Planner API is running",
		Version:   version,
		Timestamp: time.Now().UTC(),
	})
}
