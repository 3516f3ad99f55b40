// Package sink delivers correlation results to their consumers.
//
// Every sink implements ports.ResultSink. Writer prints JSON lines, WebSocket
// broadcasts to live subscribers, HTTP posts to a webhook and Latest keeps
// the most recent result for polling. Multi fans a result out to several
// sinks in order.
package sink
