// Package dedupe guards against accidental double submits: the same prompt
// sent to the same conversation within a configurable window is rejected.
package dedupe
