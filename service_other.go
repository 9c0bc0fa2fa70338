//go:build !windows

// Service management stubs for non-Windows platforms.
package main

import "fmt"

// runAsServiceIfNeeded is a no-op outside Windows; the relay always runs
// interactively.
func runAsServiceIfNeeded() (bool, error) {
	return false, nil
}

// handleServiceCommand rejects service management outside Windows.
func handleServiceCommand(action string) error {
	return fmt.Errorf("service command %q is only supported on Windows", action)
}
