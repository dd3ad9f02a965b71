package model

import "errors"

// Store errors shared by every user store implementation.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)
