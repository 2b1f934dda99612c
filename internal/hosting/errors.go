package hosting

import "errors"

// ErrAuthFailed is returned when a provider's credentials are rejected.
var ErrAuthFailed = errors.New("authentication failed")
