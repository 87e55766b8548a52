package lib

import "errors"

var (
	ErrMissingAccount   = errors.New("missing account name")
	ErrAccountNotFound  = errors.New("account not found")
	ErrMissingMessageID = errors.New("missing message id")
	ErrMissingHost      = errors.New("missing server host")
	ErrMissingUsername  = errors.New("missing username")
)
