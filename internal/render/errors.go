// Package render drives the rendering methods: each method loads the
// source data it needs through a cooperative loading sequence, renders
// frames for attached output cameras, and releases its buffers on dispose.
package render

import "errors"

var (
	// ErrMethodUnavailable is returned when a method's required processing
	// steps were not produced for the scene, or the name is unknown.
	ErrMethodUnavailable = errors.New("render: method unavailable")
	// ErrResourceExhausted is returned when a buffer allocation exceeds the
	// pool budget. The instance is disposed.
	ErrResourceExhausted = errors.New("render: resource exhausted")
	// ErrNotReady is returned when a frame is requested before loading
	// finished.
	ErrNotReady = errors.New("render: method not ready")
	// ErrDisposed is returned for any use of a disposed instance.
	ErrDisposed = errors.New("render: method disposed")
	// ErrBusy is returned when initialization is requested twice.
	ErrBusy = errors.New("render: method already initialized")
	// ErrInvalidView is returned for a frame whose view has no size or whose
	// pose rotation is not a rotation, such as a zero Pose.
	ErrInvalidView = errors.New("render: invalid view")
)
