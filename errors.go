package syncplus

import "errors"

var (
	// ErrInvalidMode is returned by RW.SetMode for modes outside Fair,
	// ReaderPreferred and WriterPreferred.
	ErrInvalidMode = errors.New("invalid reader/writer mode")
	// ErrNodeNotFound is returned when a Send selector matches no node.
	ErrNodeNotFound = errors.New("no matching node in tree")
	// ErrContextBusy is returned by Close while the context still has holders.
	ErrContextBusy = errors.New("context has active holders")
)
