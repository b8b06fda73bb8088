// Package xattr stores small pieces of asset metadata in extended file attributes.
package xattr

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/pkg/xattr"
)

const userNS = "user."

var (
	ErrNotSet       = errors.New("xattr not set")
	ErrNotSupported = errors.New("xattr not supported")
)

func convErr(err error) error {
	var e *xattr.Error
	if !errors.As(err, &e) {
		return err
	}
	switch {
	case e.Err == xattr.ENOATTR:
		return ErrNotSet
	case errors.Is(e.Err, syscall.ENOTSUP), errors.Is(e.Err, syscall.EOPNOTSUPP):
		return ErrNotSupported
	}
	return err
}

func Get(path, name string) ([]byte, error) {
	data, err := xattr.Get(path, userNS+name)
	if err != nil {
		return nil, convErr(err)
	}
	return data, nil
}

// GetJSON decodes a JSON value stored in the attribute.
func GetJSON(path, name string, v interface{}) error {
	data, err := Get(path, name)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("xattr: %s: %v", name, err)
	}
	return nil
}

func SetF(f *os.File, name string, data []byte) error {
	return convErr(xattr.FSet(f, userNS+name, data))
}

// SetJSONF encodes a value as JSON and stores it in the attribute of an open file.
func SetJSONF(f *os.File, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return SetF(f, name, data)
}
