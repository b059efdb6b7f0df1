/*
Package resp writes the JSON envelope every HTTP endpoint answers with.

Success responses carry code 0 and the payload under "data"; errors carry the business
code and message of an errs.CustomError together with its HTTP status.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"rtchat/internal/pkg/errs"
	"rtchat/internal/pkg/logx"
)

// JSONResponse is the envelope returned by every endpoint.
type JSONResponse struct {
	// Code is 0 on success, otherwise an errs code.
	Code int `json:"code"`

	// Message is a client-facing status description.
	Message string `json:"message"`

	// Data is the optional payload of a successful response.
	Data any `json:"data,omitempty"`
}

// RespondJSON writes payload as JSON with the given status.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "Error encoding JSON response", "http_status", httpStatus, "path", r.URL.Path)
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	if _, err := w.Write(response); err != nil {
		logx.Debug("Client went away before the response was written", "path", r.URL.Path)
	}
}

// RespondSuccess writes a 200 envelope around data.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// RespondError writes the envelope for err. Errors that do not carry an
// errs.CustomError are answered as ErrUnknown.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	customErr := errs.From(err)
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	RespondJSON(w, r, customErr.Status, JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
