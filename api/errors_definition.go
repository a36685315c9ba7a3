//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 404 or 429, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound  = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody     = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedParam    = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed URL parameter")}
	ErrCircuitNotFound   = Error{Code: 40010, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("unknown circuit or curve")}
	ErrQuotaExceeded     = Error{Code: 40011, HTTPstatus: http.StatusTooManyRequests, Err: fmt.Errorf("proof quota exceeded")}
	ErrJobNotFound       = Error{Code: 40012, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("proof job not found")}
	ErrElectionNotFound  = Error{Code: 40013, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("election not found")}
	ErrStreamUnsupported = Error{Code: 40014, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("streaming not supported by client connection")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrStorageFailure             = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("storage read failed")}
)
