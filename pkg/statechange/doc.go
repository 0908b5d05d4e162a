// Package statechange implements the process-wide state-change bus: a
// single broker that coalesces change_id updates per
// (account, TypeState) within a throttle window and fans the result
// out to event-source subscribers and push subscriptions, generalizing
// the broadcast-channel broker pattern to per-account delivery
// filtering and windowed coalescing instead of unconditional broadcast.
package statechange
