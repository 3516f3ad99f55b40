// Package model is the analytics core seen by the presentation layer.
//
// A Model owns at most one Session. StartSession opens the input for the
// requested mode, Step turns the next window into a correlation result and
// StopSession releases the input. Step is synchronous; internal/pipeline
// runs the same session stages concurrently.
package model
