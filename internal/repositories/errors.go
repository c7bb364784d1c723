package repositories

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateCode = errors.New("duplicate deal code")
)
