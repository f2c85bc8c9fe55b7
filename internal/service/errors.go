package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAlreadyMember      = errors.New("already a member of this fandom")
	ErrNotMember          = errors.New("not a member of this fandom")
	ErrLastAdmin          = errors.New("fandom must keep at least one admin")
	ErrSelfAction         = errors.New("cannot perform this action on yourself")
)

// NotFoundError 缺失的 fandom/user/post 等
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

// ForbiddenError 策略判定不允许
type ForbiddenError struct {
	Action string
}

func (e *ForbiddenError) Error() string { return "forbidden: " + e.Action }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }

func notFound(entity string) error { return &NotFoundError{Entity: entity} }

func forbidden(action fmt.Stringer) error { return &ForbiddenError{Action: action.String()} }

func invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }
