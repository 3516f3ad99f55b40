// Package log provides the logging abstraction used by rankflow components.
//
// Library packages accept a Logger and never write to a global logger. The
// CLI wires a zerolog-backed adapter; tests and embedders that want silence
// use the no-op logger.
//
// # Usage
//
//	logger := log.NewZerologAdapter()
//	logger.Info("session started",
//	    log.String("mode", "net"),
//	    log.Int("window", 10),
//	)
//
// Use With to derive a logger that stamps every entry with extra fields:
//
//	ingestLog := log.With(logger, log.String("component", "ingest"))
//
// # Custom Loggers
//
// Implement the Logger interface to route entries into another backend:
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
package log
