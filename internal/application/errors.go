package application

import "errors"

// ErrStoreUnavailable marks failures of the event store to accept or answer a
// request (connectivity, overload, timeouts). Store backends wrap driver
// errors with it.
var ErrStoreUnavailable = errors.New("store unavailable")
