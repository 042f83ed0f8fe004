package drain

import (
	"fmt"

	pagemanager "github.com/sushant-115/draino/core/write_engine/page_manager"
	transferqueue "github.com/sushant-115/draino/core/write_engine/transfer_queue"
)

// Config sizes a pipeline. Zero fields take the defaults.
type Config struct {
	// PageSize is the size in bytes of every page and of every full write.
	PageSize int `yaml:"page_size"`
	// NumPages is the number of pages in the pool and the capacity of each queue.
	NumPages int `yaml:"num_pages"`
	// QueueKind selects the queue container ("ring" or "list").
	QueueKind transferqueue.Kind `yaml:"queue_kind"`
	// WriteRateBytesPerSec throttles the output. Zero disables throttling.
	WriteRateBytesPerSec int64 `yaml:"write_rate_bytes_per_sec"`
}

// DefaultConfig returns the build-time defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:  pagemanager.DefaultPageSize,
		NumPages:  pagemanager.DefaultNumPages,
		QueueKind: transferqueue.KindRing,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PageSize == 0 {
		c.PageSize = def.PageSize
	}
	if c.NumPages == 0 {
		c.NumPages = def.NumPages
	}
	if c.QueueKind == "" {
		c.QueueKind = def.QueueKind
	}
	return c
}

// Validate checks the config after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.PageSize < 0 {
		return fmt.Errorf("%w: page_size %d", ErrInvalidConfig, c.PageSize)
	}
	if c.NumPages < 0 {
		return fmt.Errorf("%w: num_pages %d", ErrInvalidConfig, c.NumPages)
	}
	if _, err := transferqueue.ParseKind(string(c.QueueKind)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.WriteRateBytesPerSec < 0 {
		return fmt.Errorf("%w: write_rate_bytes_per_sec %d", ErrInvalidConfig, c.WriteRateBytesPerSec)
	}
	return nil
}
