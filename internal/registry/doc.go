// Package registry provides the static peer registry: the mapping from peer
// identifier to network address and configured tick rate. The registry is
// built once at startup and never mutated; every peer holds the same view.
package registry
