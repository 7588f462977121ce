//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"path/filepath"

	ps "github.com/mitchellh/go-ps"
)

// OtherInstance returns the PID of another running process with the same
// executable name as this one, or 0 when there is none.
func OtherInstance() (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}

	return findProcess(filepath.Base(executable), os.Getpid())
}

// findProcess returns the PID of a process named name other than self.
func findProcess(name string, self int) (int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == self {
			continue
		}

		if process.Executable() == name {
			return process.Pid(), nil
		}
	}

	return 0, nil
}
