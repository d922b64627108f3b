// Package engine runs registry mutations through a single-writer command
// loop.
//
// ARCHITECTURE:
//
// Single-Writer Command Loop:
// Commands are submitted from any goroutine and executed one at a time in
// the Run goroutine. This ensures:
// - Commands run in submission order
// - Notification seq order matches submission order
// - Request IDs are attached before the registry sees the command
//
// Command Processing Flow:
// 1. Submit/Enqueue assigns a request ID and queues the command
// 2. Engine.Run() dequeues commands one at a time
// 3. process() calls the registry under a context carrying the request ID
// 4. The result is delivered on the command's reply channel
//
// The registry itself is safe for concurrent use; the engine adds ordering
// and correlation, not safety.
package engine
