//go:build linux || darwin || freebsd || netbsd || solaris

package xattr

import "golang.org/x/sys/unix"

const errNotSup = unix.ENOTSUP
