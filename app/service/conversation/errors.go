package conversation

import "errors"

var (
	// ErrInvalidSession is returned for malformed session ids and unreadable state.
	ErrInvalidSession = errors.New("invalid session")
	// ErrGeneration is returned when the reply could not be generated. Nothing is committed.
	ErrGeneration = errors.New("reply generation failed")
	// ErrPersistence is returned when the turn could not be stored. All writes are rolled back.
	ErrPersistence = errors.New("persistence failed")
)
