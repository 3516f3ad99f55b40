// Package rankflow provides an embeddable rolling Spearman correlation engine.
//
// An instance reads multi-channel samples from an NMC data server or from a
// whitespace-separated text file and, after every window of rows, publishes
// the rank correlation magnitude of every channel pair. It can run as the
// rankflow CLI or be embedded as a library.
//
// # Basic Usage
//
//	cfg := rankflow.Config{
//	    Mode:   "net",
//	    Host:   "127.0.0.1",
//	    Port:   4000,
//	    Window: 10,
//	}
//
//	rf, err := rankflow.New(cfg, rankflow.WithSink(mySink))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := rf.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal or rf.Wait(ctx) ...
//
//	if err := rf.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Backends
//
// The compute backend is chosen once in New from Config.Backend: auto tries
// the GPU and falls back to the CPU, cpu and gpu force one, emulated runs the
// GPU kernel in software. WithBackend injects a custom implementation.
//
// # Outputs
//
// Results go to every sink passed with WithSink, to the webhook when
// WebhookURL is set, and, when Listen is set, to websocket subscribers on
// /ws. The same listener serves /metrics, /healthz and /latest.
//
// # Lifecycle States
//
//   - StateStopped: not running (initial state)
//   - StateStarting: Start() called, session opening
//   - StateRunning: processing windows
//   - StateStopping: Stop() called or the input ended
//   - StateCrashed: the session failed; Err() has the cause
//
// In net mode Reconnect restarts the session with backoff after a
// disconnect or a failed connection, up to MaxReconnects times.
package rankflow
