package common

import "errors"

// Business logic errors
var (
	// Draft errors
	ErrDraftNotFound   = errors.New("draft not found")
	ErrVersionNotFound = errors.New("version not found")
	ErrCommentNotFound = errors.New("comment not found")

	// Validation errors
	ErrEmptySelection = errors.New("empty selection")
	ErrEmptyComment   = errors.New("empty comment text")
)
