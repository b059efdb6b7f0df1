/*
Package req binds and validates JSON request bodies.

Bodies must be application/json, contain exactly one JSON document with no unknown
fields, and satisfy the `validate` struct tags of the destination.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"rtchat/internal/pkg/errs"
)

// MaxBodyBytes caps the size of a JSON request body.
const MaxBodyBytes int64 = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// BindJSON decodes the request body into dst and validates it.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	if err := validate.Struct(dst); err != nil {
		return errs.NewError(errs.ErrInvalidParams)
	}

	return nil
}
