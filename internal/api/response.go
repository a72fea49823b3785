package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/hostel"
)

// maxJSONBody caps request bodies that are decoded as JSON.
const maxJSONBody = 1 << 20

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

type errorBody struct {
	Error      string              `json:"error"`
	Kind       apperr.Kind         `json:"kind,omitempty"`
	Code       string              `json:"code,omitempty"`
	Fields     []apperr.FieldError `json:"fields,omitempty"`
	RetryAfter int                 `json:"retry_after,omitempty"`
}

// jsonError writes a JSON error response without a kind, for failures that
// happen before a request reaches the lifecycle code.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Error: message})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(e *apperr.Error) int {
	if e.Code == apperr.ErrRateLimited.Code {
		return http.StatusTooManyRequests
	}
	switch e.Kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalidState, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error","kind","code","fields"}. Unclassified
// errors become a 500 with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok {
		slog.Error("unhandled error", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonResponse(w, http.StatusInternalServerError, errorBody{Error: "internal error", Kind: apperr.KindInternal})
		return
	}
	status := statusFor(e)
	if status >= 500 {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	jsonResponse(w, status, errorBody{Error: e.Message, Kind: e.Kind, Code: e.Code, Fields: e.Fields})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(target)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperr.Invalid(typeErr.Field, "has the wrong type")
	}
	return apperr.Invalid("body", "invalid JSON request body")
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be omitted.
func decodeOptionalJSON(r *http.Request, target any) error {
	if r.ContentLength == 0 {
		return nil
	}
	defer r.Body.Close()
	err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(target)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperr.Invalid(typeErr.Field, "has the wrong type")
	}
	return apperr.Invalid("body", "invalid JSON request body")
}

// listResponse is a page of results.
type listResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func newList[T any](items []T, total int, p hostel.Page) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset}
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.Invalid(name, "must be a non-negative integer")
	}
	return n, nil
}

// queryBool reads an optional boolean query parameter.
func queryBool(r *http.Request, name string) (*bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperr.Invalid(name, "must be true or false")
	}
	return &b, nil
}

// queryPage reads limit plus either offset or a 1-based page number.
func queryPage(r *http.Request) (hostel.Page, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return hostel.Page{}, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return hostel.Page{}, err
	}
	page, err := queryInt(r, "page")
	if err != nil {
		return hostel.Page{}, err
	}
	p := hostel.Page{Limit: limit, Offset: offset}.Normalize()
	if page > 1 && offset == 0 {
		p.Offset = (page - 1) * p.Limit
	}
	return p, nil
}

// storeErr classifies an error from a direct store call.
func storeErr(err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Unavailable(err)
}
