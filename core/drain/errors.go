package drain

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid pipeline config")
	// ErrWriterFailed means the writer goroutine did not exit cleanly. The run is
	// abandoned and the output may be incomplete.
	ErrWriterFailed = errors.New("writer goroutine failed")
	// ErrRead wraps an input error other than end of stream. Everything read
	// before it has been written.
	ErrRead         = errors.New("error reading input")
	ErrPipelineBusy = errors.New("pipeline is already running")
)
