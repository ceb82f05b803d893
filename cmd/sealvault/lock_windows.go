//go:build windows

package main

import (
	"fmt"
	"os"
)

// lockPath only creates the lock file on Windows; concurrent CLI
// processes are not serialized there.
func lockPath(path string) (unlock func(), err error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return func() { _ = f.Close() }, nil
}
