package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

type AccessClaims struct {
	Subject   string
	SID       string
	Role      string
	ExpiresAt time.Time
}
