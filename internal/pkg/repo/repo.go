// Package repo declares the package-repository contract the launcher
// depends on but never implements: resolving a Ref to a layer root on disk,
// and finding the latest Ref for an app/version pair. Real implementations
// live outside this module (§1, "out of scope: the package repository").
package repo

import "github.com/appbox/launcher/pkg/ref"

// Adapter resolves package references against whatever storage backend a
// deployment wires in.
type Adapter interface {
	// RootOfLayer returns the on-disk layer root for r, or an error
	// wrapping launcherrors.ErrLayerNotFound if it isn't present locally.
	RootOfLayer(r ref.Ref) (string, error)

	// LatestOfRef returns the newest Ref known for appID/version, using
	// ref.Less to order candidates.
	LatestOfRef(appID, version string) (ref.Ref, error)
}
