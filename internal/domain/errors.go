package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrExchangeNotSet = errors.New("exchange collaborator is not attached")
	ErrUnknownSymbol  = errors.New("symbol is not configured")
	ErrInvalidOrder   = errors.New("invalid order parameters")
)
