// Package ext defines the extension system for triage queues.
//
// Extensions are notified of request lifecycle events and can react to
// them — recording metrics, alerting on rejections, writing audit
// trails, etc. Each lifecycle hook is a separate interface so
// extensions opt in only to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnRequestCompleted(ctx context.Context, req *request.Request, elapsed time.Duration) error {
//	    log.Printf("request %s completed in %s", req.ID, elapsed)
//	    return nil
//	}
//
// # Request Lifecycle Hooks
//
//   - [RequestAdmitted] — request was accepted into the queue
//   - [RequestStarted] — the scheduler began executing the request
//   - [RequestCompleted] — handler finished successfully
//   - [RequestFailed] — handler returned an error
//   - [RequestRejected] — admission refused the request
//   - [RequestEvicted] — an overflow policy displaced the request
//   - [RequestCancelled] — the producer cancelled the request while pending
//   - [Shutdown] — the queue is shutting down
//
// Hook errors are logged and never propagated; an extension can observe
// the pipeline but not stall it.
package ext
