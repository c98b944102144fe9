//go:build !linux && !darwin && !freebsd && !netbsd && !solaris

package xattr

// Calls are rejected with ErrNotSupported before reaching the system.
var errNotSup error = ErrNotSupported
