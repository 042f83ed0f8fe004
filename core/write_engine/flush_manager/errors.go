package flushmanager

import "errors"

// --- Error Definitions ---

var (
	// ErrShortWrite is reported when the output accepts fewer bytes than a page
	// holds. It never stops the writer.
	ErrShortWrite = errors.New("short write to output")
	// ErrFlush is reported when the output cannot be flushed after draining.
	ErrFlush = errors.New("output flush failed")
	// ErrThrottle is reported when the output rate limiter refuses to wait.
	ErrThrottle = errors.New("output rate limiter wait failed")
)
