// Package feed subscribes to a realtime change channel and delivers
// validated change events to a callback.
//
// A Subscription runs one goroutine that dials, waits for the server's
// "subscribed" frame, runs the OnConnect hook, and then delivers events in
// arrival order. Transport failures never surface to the caller: the
// goroutine redials with capped exponential backoff until Unsubscribe.
// Frames that fail validation are logged and dropped; exact re-deliveries
// are dropped by envelope id.
package feed
