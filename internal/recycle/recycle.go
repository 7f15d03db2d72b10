// Package recycle moves files to the platform trash.
package recycle

import (
	"fmt"
	"os"

	"github.com/Bios-Marcel/wastebasket"
)

// Recycler moves a file to a recoverable trash location.
type Recycler interface {
	Trash(path string) error
}

// Wastebasket recycles via the platform trash (Recycle Bin on Windows,
// Trash on macOS, the XDG trash spec elsewhere).
type Wastebasket struct{}

func (Wastebasket) Trash(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("could not trash %s: %w", path, err)
	}
	if err := wastebasket.Trash(path); err != nil {
		return fmt.Errorf("could not trash %s: %w", path, err)
	}
	return nil
}
