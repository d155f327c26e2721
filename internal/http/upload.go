package httpapi

import (
	"errors"
	"io"
	"net/http"

	"civilsite-backend-go/internal/media"
	"civilsite-backend-go/internal/services"
)

type UploadResponse struct {
	URL string `json:"url"`
}

// UploadImage accepts a multipart "file" field and returns the stored image URL.
func (s *Server) UploadImage(w http.ResponseWriter, r *http.Request) {
	const op = "upload image"
	if s.Images == nil {
		s.fail(w, r, op, services.ErrBadGateway("Image storage is not configured"))
		return
	}
	limit := s.Config.ImageMaxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, op, services.ErrBadRequest("Image is too large"))
			return
		}
		s.fail(w, r, op, services.ErrBadRequest("Multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.fail(w, r, op, services.ErrBadRequest("Could not read upload"))
		return
	}
	url, err := s.Images.Upload(r.Context(), data)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, UploadResponse{URL: url})
	case errors.Is(err, media.ErrUpload):
		s.fail(w, r, op, services.WrapError(services.ErrBadGateway("Image upload failed"), err.Error()))
	case errors.Is(err, media.ErrEmpty), errors.Is(err, media.ErrTooLarge), errors.Is(err, media.ErrUnsupportedFormat):
		s.fail(w, r, op, services.ErrBadRequest(err.Error()))
	default:
		s.fail(w, r, op, err)
	}
}
