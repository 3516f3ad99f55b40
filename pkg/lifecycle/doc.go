// Package lifecycle provides the state machine, worker tracking and restart
// policy of a rankflow instance.
//
// # Usage
//
//	manager := lifecycle.NewManager(logger, emitter)
//	if !manager.CanStart() {
//	    return lifecycle.ErrAlreadyRunning
//	}
//	if err := manager.TransitionTo(lifecycle.StateStarting, "start requested"); err != nil {
//	    return err
//	}
//
// Sessions that should survive server restarts run under a Runner:
//
//	runner := lifecycle.NewRunner(lifecycle.RunnerConfig{Reconnect: true, MaxReconnects: 5}, logger)
//	err := runner.Run(ctx, func(ctx context.Context) error { ... })
//
// # State Machine
//
// Valid state transitions:
//   - Stopped -> Starting
//   - Starting -> Running, Stopping, Crashed
//   - Running -> Stopping, Crashed
//   - Stopping -> Stopped, Crashed
//   - Crashed -> Starting, Stopping
package lifecycle
