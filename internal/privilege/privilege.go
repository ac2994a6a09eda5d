// Package privilege reports whether the current process may install
// modules for all users.
package privilege

// Checker answers the elevation question; commands depend on this rather
// than on the OS query directly.
type Checker func() bool

// Default is the OS-backed checker.
var Default Checker = IsElevated
