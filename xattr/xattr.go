// Package xattr stores small metadata values in fingertip's namespace of user extended attributes.
package xattr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/pkg/xattr"
)

const userNS = "user.fingertip."

var endian = binary.LittleEndian

var (
	// ErrNotSet is returned when the attribute is missing.
	ErrNotSet = errors.New("xattr not set")
	// ErrNotSupported is returned when the filesystem does not support user attributes.
	ErrNotSupported = errors.New("xattrs are not supported")
)

// supported is false on platforms where the xattr package silently ignores all calls.
var supported = xattr.XATTR_SUPPORTED

func convErr(err error) error {
	if e, ok := err.(*xattr.Error); ok {
		switch e.Err {
		case xattr.ENOATTR:
			return ErrNotSet
		case errNotSup:
			return fmt.Errorf("%w: %v", ErrNotSupported, err)
		}
	}
	return err
}

func Get(path, name string) ([]byte, error) {
	if !supported {
		return nil, ErrNotSupported
	}
	data, err := xattr.Get(path, userNS+name)
	if err != nil {
		return nil, convErr(err)
	}
	return data, nil
}

func Set(path, name string, data []byte) error {
	if !supported {
		return ErrNotSupported
	}
	return convErr(xattr.Set(path, userNS+name, data))
}

func GetString(path, name string) (string, error) {
	data, err := Get(path, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func SetString(path, name string, v string) error {
	return Set(path, name, []byte(v))
}

func GetUint(path, name string) (uint64, error) {
	data, err := Get(path, name)
	if err != nil {
		return 0, err
	} else if len(data) != 8 {
		return 0, fmt.Errorf("xattr: wrong int format")
	}
	return endian.Uint64(data), nil
}

func SetUint(path, name string, v uint64) error {
	var b [8]byte
	endian.PutUint64(b[:], v)
	return Set(path, name, b[:])
}

func GetTime(path, name string) (time.Time, error) {
	nanos, err := GetUint(path, name)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, int64(nanos)).UTC(), nil
}

func SetTime(path, name string, t time.Time) error {
	return SetUint(path, name, uint64(t.UTC().UnixNano()))
}
