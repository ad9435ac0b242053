package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"roadtrip/internal/imagestore"
)

const (
	maxImageSize  = 10 << 20
	maxImageFiles = 5
	// multipart parts above this are spooled to disk
	multipartMemory = 32 << 20
)

var (
	errFileTooLarge = errors.New("File too large. Maximum size is 10MB.")
	errNotAnImage   = errors.New("Only image files are allowed!")
)

func tooManyFiles(max int) error {
	return fmt.Errorf("Too many files. Maximum is %d files.", max)
}

type imageForm struct {
	values map[string][]string
	files  []imagestore.File
}

func (f imageForm) value(key string) (string, bool) {
	v, ok := f.values[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// parseImageForm reads a multipart body and checks every file in field
// against the count, size and image type limits before anything is uploaded.
func parseImageForm(w http.ResponseWriter, r *http.Request, field string, maxFiles int) (imageForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxFiles)*maxImageSize+1<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return imageForm{}, errFileTooLarge
		}
		return imageForm{}, fmt.Errorf("parse form: %w", err)
	}

	form := imageForm{values: r.MultipartForm.Value}

	headers := r.MultipartForm.File[field]
	if len(headers) > maxFiles {
		return imageForm{}, tooManyFiles(maxFiles)
	}

	for _, fh := range headers {
		file, err := checkImage(fh)
		if err != nil {
			return imageForm{}, err
		}
		form.files = append(form.files, file)
	}
	return form, nil
}

// removeMultipartFiles deletes the temp files spooled by parseImageForm.
// net/http only does this for the request it passed to the handler, not for
// the copies made by r.WithContext in middleware.
func removeMultipartFiles(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func checkImage(fh *multipart.FileHeader) (imagestore.File, error) {
	if fh.Size > maxImageSize {
		return imagestore.File{}, errFileTooLarge
	}
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return imagestore.File{}, errNotAnImage
	}

	// the declared type is client controlled; sniff the content as well
	f, err := fh.Open()
	if err != nil {
		return imagestore.File{}, fmt.Errorf("open file: %w", err)
	}
	detected, err := mimetype.DetectReader(f)
	f.Close()
	if err != nil {
		return imagestore.File{}, fmt.Errorf("detect file type: %w", err)
	}
	if !strings.HasPrefix(detected.String(), "image/") {
		return imagestore.File{}, errNotAnImage
	}

	return imagestore.File{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: detected.String(),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}, nil
}

func (app *application) uploadErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, imagestore.ErrNotConfigured) {
		app.logger.Errorw("image storage not configured", "path", r.URL.Path, "error", err.Error())
		writeJSONError(w, http.StatusInternalServerError, "Image storage is not configured")
		return
	}

	app.logger.Errorw("image upload failed", "path", r.URL.Path, "request_id", requestID(r), "error", err.Error())
	msg := "Error uploading images"
	if app.config.isDevelopment() {
		msg = msg + ": " + err.Error()
	}
	writeJSONError(w, http.StatusInternalServerError, msg)
}

// discardImages removes stored images off the request path.
func (app *application) discardImages(urls []string) {
	if len(urls) == 0 {
		return
	}

	app.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := imagestore.DeleteAll(ctx, app.images, urls); err != nil {
			app.logger.Warnw("could not delete images", "count", len(urls), "error", err.Error())
		}
	})
}
