package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"housesplit/internal/core"
)

// MaxBodyBytes caps every request body.
const MaxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// requestError is a malformed or invalid request body. It maps to 400.
type requestError struct {
	msg     string
	details []string
}

func (e *requestError) Error() string { return e.msg }

func (e *requestError) response() *ResponseBuilder {
	return BadRequestError(e.msg, e.details...)
}

// decodeJSON reads one JSON value from the body into dst and validates its
// struct tags.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			return err
		case errors.Is(err, io.EOF):
			return &requestError{msg: "request body is required"}
		default:
			return &requestError{msg: "invalid JSON body", details: []string{err.Error()}}
		}
	}
	if dec.More() {
		return &requestError{msg: "invalid JSON body", details: []string{"unexpected data after JSON value"}}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &requestError{msg: "validation failed", details: fieldErrors(verrs)}
		}
		return &requestError{msg: "validation failed", details: []string{err.Error()}}
	}
	return nil
}

func fieldErrors(verrs validator.ValidationErrors) []string {
	out := make([]string, len(verrs))
	for i, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out[i] = fmt.Sprintf("%s is required", fe.Field())
		case "max":
			out[i] = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		case "gt", "min":
			out[i] = fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
		default:
			out[i] = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
	}
	return out
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &requestError{msg: fmt.Sprintf("invalid %s", name)}
	}
	return id, nil
}

// monthParam parses a month key from a path value or query parameter. An
// empty optional parameter yields the empty key.
func monthParam(raw string, required bool) (core.MonthKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" && !required {
		return "", nil
	}
	return core.ParseMonthKey(raw)
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
