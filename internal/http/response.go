package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"civilsite-backend-go/internal/models"
	"civilsite-backend-go/internal/services"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 32 << 20
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// writeSuccess acknowledges a mutation that has no row to echo, such as a delete.
func writeSuccess(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// fail writes err as a client error when it is a ServiceError and as a
// generic 500 otherwise. The cause is always logged with the operation name.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error, ids ...int64) {
	status, message := http.StatusInternalServerError, "Internal server error"
	if svcErr, ok := services.AsServiceError(err); ok {
		status, message = svcErr.Status, svcErr.Message
	}

	var event *zerolog.Event
	switch {
	case status >= http.StatusInternalServerError:
		event = log.Error()
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		event = log.Info()
	default:
		event = log.Warn()
	}
	event = event.Err(err).Str("op", op).Int("status", status).Str("request_id", middleware.GetReqID(r.Context()))
	if len(ids) > 0 {
		event = event.Int64("id", ids[0])
	}
	event.Msg("request failed")

	WriteError(w, status, message)
}

// decode reads a JSON body into dst. Unknown fields are ignored.
func decode(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return services.ErrBadRequest("Payload too large")
		case errors.Is(err, io.EOF):
			return services.ErrBadRequest("Request body is required")
		case errors.Is(err, models.ErrInvalidRefID):
			return services.ErrBadRequest("id fields " + models.ErrInvalidRefID.Error())
		}
		return services.ErrBadRequest("Invalid payload")
	}
	return nil
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, op string, dst any) bool {
	if err := decode(w, r, dst, maxBodyBytes); err != nil {
		s.fail(w, r, op, err)
		return false
	}
	return true
}

// decodeList accepts either a bare JSON array or {"items": [...]}.
func (s *Server) decodeList(w http.ResponseWriter, r *http.Request, op string, dst any) bool {
	var raw json.RawMessage
	if !s.decodeJSON(w, r, op, &raw) {
		return false
	}
	trimmed := strings.TrimSpace(string(raw))
	var err error
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(raw, dst)
	} else {
		wrapper := struct {
			Items json.RawMessage `json:"items"`
		}{}
		err = json.Unmarshal(raw, &wrapper)
		if err == nil && len(wrapper.Items) > 0 && string(wrapper.Items) != "null" {
			err = json.Unmarshal(wrapper.Items, dst)
		} else if err == nil {
			err = errors.New("missing items")
		}
	}
	if err != nil {
		msg := "Expected a JSON array of records"
		if errors.Is(err, models.ErrInvalidRefID) {
			msg = "id fields " + models.ErrInvalidRefID.Error()
		}
		s.fail(w, r, op, services.ErrBadRequest(msg))
		return false
	}
	return true
}

// queryID parses ?id=. ok is false when the parameter is absent.
func queryID(r *http.Request) (id int64, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get("id"))
	if raw == "" {
		return 0, false, nil
	}
	id, err = strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, true, services.ErrBadRequest("id must be a positive integer id")
	}
	return id, true, nil
}

// targetID resolves the record id for update and delete requests: ?id= wins,
// otherwise the id decoded from the body.
func targetID(r *http.Request, bodyID models.RefID) (int64, error) {
	id, ok, err := queryID(r)
	if err != nil {
		return 0, err
	}
	if ok {
		return id, nil
	}
	if bodyID <= 0 {
		return 0, services.ErrBadRequest("id must be a positive integer id")
	}
	return bodyID.Int64(), nil
}

type idBody struct {
	ID models.RefID `json:"id"`
}

// deleteID reads the id of a DELETE request from the query or the body.
func (s *Server) deleteID(w http.ResponseWriter, r *http.Request, op string) (int64, bool) {
	if id, ok, err := queryID(r); ok || err != nil {
		if err != nil {
			s.fail(w, r, op, err)
			return 0, false
		}
		return id, true
	}
	var body idBody
	if !s.decodeJSON(w, r, op, &body) {
		return 0, false
	}
	id, err := targetID(r, body.ID)
	if err != nil {
		s.fail(w, r, op, err)
		return 0, false
	}
	return id, true
}
