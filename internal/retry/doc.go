// Package retry provides bounded retry of transient database failures with
// exponential backoff. Connection acquisition is the only retried operation:
// authentication and configuration errors are classified as fatal and
// propagate immediately.
package retry
