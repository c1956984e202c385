package txn

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"shokobridge/internal/services"
)

// deviceOf returns the device id of the nearest existing ancestor of path.
func deviceOf(path string) (uint64, error) {
	probe := filepath.Clean(path)
	for {
		var stat unix.Stat_t
		err := unix.Stat(probe, &stat)
		if err == nil {
			return uint64(stat.Dev), nil
		}
		if !os.IsNotExist(err) {
			return 0, fmt.Errorf("stat %s: %w", probe, err)
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			return 0, fmt.Errorf("stat %s: %w", path, err)
		}
		probe = parent
	}
}

// EnsureHardlinkCapable verifies the source and destination roots share a
// filesystem. Hard links cannot cross devices, so a mismatch is a
// configuration error caught before any work starts.
func EnsureHardlinkCapable(sourceRoot, destinationRoot string) error {
	sourceDev, err := deviceOf(sourceRoot)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "startup", "volume-check",
			"inspect source root", err)
	}
	destDev, err := deviceOf(destinationRoot)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "startup", "volume-check",
			"inspect destination root", err)
	}
	if sourceDev != destDev {
		return services.Wrap(services.ErrConfiguration, "startup", "volume-check",
			fmt.Sprintf("hardlink requires one filesystem, got %s and %s on different devices",
				sourceRoot, destinationRoot), nil)
	}
	return nil
}
