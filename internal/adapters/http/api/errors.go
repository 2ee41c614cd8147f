package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrCredentials = errors.New("could not validate credentials")
	ErrLogin       = errors.New("incorrect email or password")
)
