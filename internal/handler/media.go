package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/service"
)

const (
	mediaField = "media"

	// multipartMemory is how much of a multipart body is kept in memory
	// before the parser spills to temporary files.
	multipartMemory = 8 << 20
)

// MediaHandler relays uploads to the asset host.
type MediaHandler struct {
	media    *service.MediaService
	maxBytes int64
	logger   *slog.Logger
}

func NewMediaHandler(media *service.MediaService, maxBytes int64, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{media: media, maxBytes: maxBytes, logger: logger}
}

type videoRequest struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

// HandleUpload accepts one file in the multipart field "media".
//
// HTTP: POST /api/media/upload (auth, multipart/form-data)
// RESPONSE: {"url", "public_id", "resource_type"}
func (h *MediaHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apperror.ValidationFailed(mediaField, "File exceeds the upload size limit"))
			return
		}
		writeError(w, r, apperror.ValidationFailed(mediaField, "Upload error: "+err.Error()))
		return
	}

	file, header, err := r.FormFile(mediaField)
	if err != nil {
		writeError(w, r, apperror.ValidationFailed(mediaField, "No file uploaded"))
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, apperror.ValidationFailed(mediaField, "Upload error: "+err.Error()))
		return
	}

	asset, err := h.media.Upload(r.Context(), service.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        body,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// HandleVideoURL registers a YouTube or Vimeo link, optionally uploading a
// thumbnail sent as a data URI.
//
// HTTP: POST /api/media/video-url (auth)
func (h *MediaHandler) HandleVideoURL(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	video, err := h.media.RegisterExternalVideo(r.Context(), service.VideoInput{
		URL:       req.URL,
		Thumbnail: req.Thumbnail,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

// HandleDelete removes an asset. Public ids may contain slashes
// ("projectshelf/abc"), so the route is a wildcard.
//
// HTTP: DELETE /api/media/*?resource_type=image|video|raw (auth)
func (h *MediaHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "*")
	resourceType := r.URL.Query().Get("resource_type")

	if err := h.media.Delete(r.Context(), publicID, resourceType); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Media deleted successfully"})
}
