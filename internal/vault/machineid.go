package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// MachineIdentifier supplies the stable machine identity used as key
// derivation input. It is an interface so tests and portable installs can
// substitute their own source.
type MachineIdentifier interface {
	MachineID() (string, error)
}

// SystemMachineID reads the host machine identity, preferring
// /etc/machine-id and falling back to a digest of hostname and platform.
type SystemMachineID struct{}

func (SystemMachineID) MachineID() (string, error) {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("machine id unavailable: %w", err)
	}
	sum := sha256.Sum256([]byte(hostname + runtime.GOOS + runtime.GOARCH))
	return hex.EncodeToString(sum[:]), nil
}

// StaticMachineID returns a fixed identity, used by tests.
type StaticMachineID string

func (s StaticMachineID) MachineID() (string, error) {
	if s == "" {
		return "", fmt.Errorf("machine id unavailable: empty static id")
	}
	return string(s), nil
}
