package internal

import "errors"

var (
	// ErrInvalidURL indicates the URL has no http/https scheme.
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrDomainNotAllowed indicates the URL is not a Google Drive/Docs link.
	ErrDomainNotAllowed = errors.New("only Google Drive URLs are allowed")

	// ErrSlugExists indicates the slug is already taken in the store.
	ErrSlugExists = errors.New("slug already exists")

	// ErrLinkNotFound indicates the slug has no record. Expired links are
	// reported the same way so callers cannot probe expired slugs.
	ErrLinkNotFound = errors.New("link not found")

	// ErrSlugSpaceExhausted indicates the bounded slug-generation retry
	// loop ran out of attempts.
	ErrSlugSpaceExhausted = errors.New("unable to generate unique slug")
)

// IsValidationErr reports whether err is a creation-time validation failure
// that should surface as a client error rather than a server error.
func IsValidationErr(err error) bool {
	return errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrDomainNotAllowed)
}
