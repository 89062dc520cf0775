package domain

import "errors"

var (
	// ErrValidation marks a candidate missing required fields; never retried.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateSlug is returned by a repository insert when the slug is taken.
	ErrDuplicateSlug = errors.New("slug already exists")

	// ErrNotFound is returned by repository lookups.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks an illegal submission transition; caller error.
	ErrInvalidState = errors.New("invalid submission state")

	// ErrRewriteUnavailable means the external rewrite call failed or returned
	// unusable output; policy decides between fallback and drop.
	ErrRewriteUnavailable = errors.New("rewrite unavailable")

	// ErrQualityGateFailed marks a candidate rejected by the quality gate.
	ErrQualityGateFailed = errors.New("quality gate failed")

	// ErrUpstreamFetch marks a feed or image source failure; per-item skip.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
)
