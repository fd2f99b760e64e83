// Package state holds the canonical, hub-facing device state.
//
// Values is a flat property map whose entries are always in hub units
// (percent 0-100, degrees, mired 140-500, lux). Raw device units never reach
// this package; translation happens in codec and normalize.
//
// Tracker keeps an explicit {committed, pending, dirty} triple per property:
//
//   - committed is the last value known to be on the device (read back from
//     a channel or acknowledged by a successful push)
//   - pending is the value the hub currently shows, including optimistic
//     sets that have not been pushed yet
//   - dirty is true while pending differs from committed
//
// Tracker is not safe for concurrent use; the reconcile machine owns it and
// guards it with its own mutex.
package state
