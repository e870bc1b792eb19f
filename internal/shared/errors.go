package shared

import "errors"

// ErrLockTimeout occurs when a keyed lock could not be acquired in time.
var ErrLockTimeout = errors.New("lock acquisition timed out")
