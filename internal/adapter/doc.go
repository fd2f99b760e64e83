// Package adapter implements reconcile.Adapter for each SwitchBot device
// category.
//
// An adapter is the device-specific part of the reconciliation pipeline. It
// knows the category's offline baseline, which hub properties may be set,
// how a set fans out into dependent properties, and how dirty properties
// map onto the SwitchBot command vocabulary for the cloud API and, where
// supported, the local radio gateway.
//
// Adapters hold only settings fixed at construction and are safe to share.
package adapter
