package stretch

import "errors"

// ErrInvalidChannels is returned for channel counts below one.
var ErrInvalidChannels = errors.New("stretch: channel count must be >= 1")
