//go:build !unix

package toml

import "os"

// Without flock only the in-process lock applies.
func tryLockFile(*os.File) (bool, error) { return true, nil }

func unlockFileHandle(*os.File) error { return nil }
