package main

import (
	"context"
	"fmt"
	"time"
)

// background runs fn on its own goroutine. Panics are logged instead of
// crashing the process and run waits for pending work on shutdown.
func (app *application) background(fn func()) {
	app.wg.Add(1)

	go func() {
		defer app.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				app.logger.Errorw("background task panicked", "error", fmt.Sprint(err))
			}
		}()

		fn()
	}()
}

// publish emits a domain event off the request path. Failures are logged only.
func (app *application) publish(subject string, payload any) {
	app.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := app.events.Publish(ctx, subject, payload)
		app.metrics.eventPublishes.WithLabelValues(subject, outcome(err)).Inc()
		if err != nil {
			app.logger.Warnw("event publish failed", "subject", subject, "error", err.Error())
		}
	})
}
