package engine

import "errors"

// User input errors. Each aborts the command before anything is written.
var (
	ErrEmptyText         = errors.New("no text to remember: pass it as an argument, with --file, or on stdin")
	ErrInvalidImportance = errors.New("invalid importance")
	ErrInvalidTTL        = errors.New("invalid ttl")
	ErrInvalidBoundary   = errors.New("invalid older-than boundary")
	ErrNotFound          = errors.New("record not found")
	ErrNoSelector        = errors.New("forget needs at least one id or tag")
	ErrInvalidTopK       = errors.New("top-k must be at least 1")
)
