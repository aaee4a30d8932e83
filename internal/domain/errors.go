package domain

import "errors"

// Storage-level errors shared by the repositories and the services above them.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user with email or username already exists")
)
