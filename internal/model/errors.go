package model

import "errors"

var (
	// ErrValidation rejects a request before any side effect happens.
	ErrValidation = errors.New("invalid request")

	// ErrChatBusy reports a second send racing an in-flight generation on
	// the same chat.
	ErrChatBusy = errors.New("chat has a generation in flight")

	// Upstream generation failures, split by when they happen.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamInterrupted = errors.New("upstream interrupted mid-stream")
	ErrUpstreamTimeout     = errors.New("upstream timed out")

	// ErrStoreUnavailable wraps persistence-layer connectivity failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)
