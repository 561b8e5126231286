package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/reusehub/swapit-backend/internal/storage"
)

const maxUploadBytes = 8 << 20

type UploadHandler struct {
	uploader *storage.Uploader
}

func NewUploadHandler(uploader *storage.Uploader) *UploadHandler {
	return &UploadHandler{uploader: uploader}
}

// SetUploader attaches storage after startup; the server begins listening
// before slow external clients finish initializing.
func (h *UploadHandler) SetUploader(uploader *storage.Uploader) {
	h.uploader = uploader
}

type UploadResponse struct {
	URL string `json:"url"`
}

func (h *UploadHandler) Upload(c echo.Context) error {
	if h.uploader == nil {
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("unavailable", "photo storage is not configured"))
	}
	file, err := c.FormFile("photo")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "photo file is required"))
	}
	if file.Size > maxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, NewErrorResponse("too_large", "photo exceeds 8MB"))
	}
	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "cannot read photo"))
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil || len(data) > maxUploadBytes {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "cannot read photo"))
	}
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	url, err := h.uploader.Upload(c.Request().Context(), data, contentType)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "upload failed"))
	}
	return c.JSON(http.StatusCreated, UploadResponse{URL: url})
}
