package domain

import (
	"errors"
	"fmt"
)

// Domain errors. Check them with errors.Is; callers usually receive them wrapped
// with the failing host, path or value.
var (
	// ErrConnectFailure is returned when the data server refused the connection.
	ErrConnectFailure = errors.New("rankflow: connect failed")

	// ErrOpenFailed is returned when a file source cannot be opened.
	ErrOpenFailed = errors.New("rankflow: open failed")

	// ErrConfiguration marks fatal configuration problems.
	ErrConfiguration = errors.New("rankflow: invalid configuration")

	// ErrInvalidWindow is returned for window sizes below 2.
	ErrInvalidWindow = fmt.Errorf("%w: window must be at least 2", ErrConfiguration)

	// ErrUnknownMode is returned for a session mode other than net or file.
	ErrUnknownMode = fmt.Errorf("%w: unknown mode", ErrConfiguration)

	// ErrChannelMismatch is returned when the channel count changes mid-session.
	ErrChannelMismatch = fmt.Errorf("%w: channel count changed", ErrConfiguration)

	// ErrNoSession is returned by Step when no session has been started.
	ErrNoSession = errors.New("rankflow: no active session")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("rankflow: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("rankflow: not running")
)
