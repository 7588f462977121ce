package oneshot

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNegativeTimeout is returned for a timeout below zero.
	ErrNegativeTimeout = errors.New("timeout must not be negative")
	// ErrPermanentArming is returned when neither a timeout nor a cancel policy could ever disarm.
	ErrPermanentArming = errors.New("a zero timeout requires a cancel policy other than none")
)

// Config is the immutable arming configuration of one behavior instance.
type Config struct {
	// Timeout disarms the layer after this duration. Zero disables the timer.
	Timeout time.Duration `yaml:"timeout"`
	// Policy selects the event-based disarm path.
	Policy Policy `yaml:"cancel_policy"`
}

// Validate rejects configurations that are malformed or would never disarm.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return ErrNegativeTimeout
	}

	if !c.Policy.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownPolicy, int(c.Policy))
	}

	if c.Timeout == 0 && c.Policy == PolicyNone {
		return ErrPermanentArming
	}

	return nil
}

// HasTimeout reports whether a timer is scheduled on arming.
func (c Config) HasTimeout() bool {
	return c.Timeout > 0
}
