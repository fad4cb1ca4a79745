// Package notify implements the best-effort notification sink.
//
// Warnings and errors raised during a sync cycle are queued in the shared
// key-value store and drained in one Flush at the end of the cycle's NOTIFY
// phase. Flush clears the queue unconditionally after attempted delivery;
// a delivery failure never rolls back the cycle. Critical alerts bypass the
// queue and post immediately.
package notify
