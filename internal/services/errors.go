package services

import "errors"

var (
	ErrDuplicateRequest  = errors.New("a friend request is already pending between these users")
	ErrAlreadyFriends    = errors.New("users are already friends")
	ErrNotFound          = errors.New("not found")
	ErrNotFriends        = errors.New("users are not friends")
	ErrUnauthorized      = errors.New("not authorized")
	ErrInvalidTransition = errors.New("friend request is no longer pending")
	ErrInvalidArgument   = errors.New("invalid argument")
)
