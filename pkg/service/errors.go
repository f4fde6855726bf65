package service

import (
	"errors"

	"linkshrink/pkg/storage"
)

var (
	// ErrNotFound means the key does not resolve to a link.
	ErrNotFound = errors.New("link not found")
	// ErrForbiddenDomain means the destination's domain has been blocked.
	ErrForbiddenDomain = errors.New("that URL is not allowed")
	// ErrForbiddenName means the requested custom key is a reserved word.
	ErrForbiddenName = errors.New("that name is reserved")
	// ErrDuplicateKey means the requested key is already taken. It shares
	// identity with the storage sentinel so errors.Is works across layers.
	ErrDuplicateKey = storage.ErrDuplicateKey
	// ErrNotAuthorized means the requester is neither owner nor admin.
	ErrNotAuthorized = errors.New("not authorized")
)

// IsNotFound reports whether err is a not-found condition.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicateKey reports whether err indicates a key uniqueness conflict.
func IsDuplicateKey(err error) bool { return errors.Is(err, ErrDuplicateKey) }

// IsNotAuthorized reports whether err is an authorization failure.
func IsNotAuthorized(err error) bool { return errors.Is(err, ErrNotAuthorized) }
