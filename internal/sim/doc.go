// Package sim orchestrates a full in-process simulation run: it builds the
// peer registry from configuration, creates one log stream and one VM per
// peer, runs them for the configured duration and shuts everything down
// cooperatively. Peers only interact over loopback TCP even when they share
// the process.
package sim
