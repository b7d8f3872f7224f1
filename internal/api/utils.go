package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"can-decoder/internal/candump"
	"can-decoder/internal/catalog"
	"can-decoder/internal/database/clickhouse"
	"can-decoder/internal/decoder"
	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
)

// errBadRequest marks malformed request input.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), errBadRequest)
}

// parseCANID accepts "0x" prefixed hex or decimal identifiers
func parseCANID(raw string) (uint32, error) {
	raw = strings.TrimSpace(raw)
	var (
		id  uint64
		err error
	)
	if len(raw) > 2 && (raw[:2] == "0x" || raw[:2] == "0X") {
		id, err = strconv.ParseUint(raw[2:], 16, 32)
	} else {
		id, err = strconv.ParseUint(raw, 10, 32)
	}
	if err != nil {
		return 0, badRequest("invalid can_id %q", raw)
	}
	return uint32(id), nil
}

// parseQueryParams parses common query parameters from HTTP request
func parseQueryParams(r *http.Request) (models.QueryParams, error) {
	params := models.QueryParams{
		Limit: 100, // default limit
	}
	q := r.URL.Query()

	if startTimeStr := q.Get("start_time"); startTimeStr != "" {
		t, err := time.Parse(time.RFC3339, startTimeStr)
		if err != nil {
			return params, badRequest("invalid start_time format: %v", err)
		}
		params.StartTime = &t
	}

	if endTimeStr := q.Get("end_time"); endTimeStr != "" {
		t, err := time.Parse(time.RFC3339, endTimeStr)
		if err != nil {
			return params, badRequest("invalid end_time format: %v", err)
		}
		params.EndTime = &t
	}

	if canIDStr := q.Get("can_id"); canIDStr != "" {
		canID, err := parseCANID(canIDStr)
		if err != nil {
			return params, err
		}
		params.CANID = &canID
	}

	params.Interface = q.Get("interface")
	params.Message = q.Get("message")
	params.Signal = q.Get("signal")

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return params, badRequest("invalid limit %q", limitStr)
		}
		params.Limit = limit
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return params, badRequest("invalid offset %q", offsetStr)
		}
		params.Offset = offset
	}

	return params, nil
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrUnknownMessage), errors.Is(err, clickhouse.ErrNoStats):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest), errors.Is(err, candump.ErrParse), errors.Is(err, decoder.ErrShortFrame):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondWithError sends an error response
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithErr(w http.ResponseWriter, err error) {
	respondWithError(w, statusFor(err), err.Error())
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func hexID(id uint32) string {
	return fmt.Sprintf("0x%X", id)
}
