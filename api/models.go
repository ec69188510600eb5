package api

import "github.com/jmcleod/registrar/spotlight"

// SpotlightResponse is returned from GET and POST /spotlight.
type SpotlightResponse = spotlight.Search

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}
