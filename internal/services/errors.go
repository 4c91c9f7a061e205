package services

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrEmailAlreadyInUse    = errors.New("email already in use")
	ErrInvalidCredentials   = errors.New("email not found or password is incorrect")
	ErrOldPasswordIncorrect = errors.New("old password is incorrect")
	ErrTaskForbidden        = errors.New("task belongs to another user")
	ErrInvalidTaskStatus    = errors.New("invalid task status")
)
