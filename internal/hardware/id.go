// Package hardware derives the stable hardware id the Ring servers bind
// refresh secrets and sessions to. The id is a namespaced UUID computed
// from a stable system identifier, so the same machine always presents
// the same id. When no system identifier can be found within the
// timeout, a random id is used instead (which Ring treats as a new
// device).
package hardware

import (
	"log"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Namespace for deterministic hardware ids. Changing this would present
// every install as a new device and invalidate existing sessions.
var idNamespace = uuid.MustParse("e53ffdc0-e91d-4ce1-bec2-df939d94739d")

// systemIDTimeout bounds how long we wait for the platform system id
// lookup before falling back to a random id.
const systemIDTimeout = 5 * time.Second

// FromSeed derives the deterministic hardware id for a caller-provided
// system identifier.
func FromSeed(systemID string) string {
	return uuid.NewSHA1(idNamespace, []byte(systemID)).String()
}

// ID returns the hardware id for this machine. If systemID is non-empty
// it is used directly as the seed. Otherwise the platform system uuid is
// looked up, bounded by a 5 second timeout; on timeout or lookup failure
// a random id is returned and an error is logged.
func ID(systemID string) string {
	if systemID != "" {
		return FromSeed(systemID)
	}

	type result struct {
		id  string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		id, err := systemUUID()
		ch <- result{id, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil || res.id == "" {
			log.Printf("hardware: unable to get system uuid, falling back to random session id: %v", res.err)
			return uuid.NewString()
		}
		return FromSeed(res.id)
	case <-time.After(systemIDTimeout):
		log.Printf("hardware: request for system uuid timed out, falling back to random session id")
		return uuid.NewString()
	}
}

// systemUUID looks up a stable platform identifier.
func systemUUID() (string, error) {
	switch runtime.GOOS {
	case "linux":
		// machine-id is present on any systemd system and survives
		// reboots; the DMI product uuid needs root on many distros.
		for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id", "/sys/class/dmi/id/product_uuid"} {
			if data, err := os.ReadFile(path); err == nil {
				if id := strings.TrimSpace(string(data)); id != "" && id != "-" {
					return id, nil
				}
			}
		}
		return "", os.ErrNotExist
	case "darwin":
		out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
		if err != nil {
			return "", err
		}
		for _, line := range strings.Split(string(out), "\n") {
			if strings.Contains(line, "IOPlatformUUID") {
				parts := strings.Split(line, "\"")
				if len(parts) >= 4 {
					return parts[3], nil
				}
			}
		}
		return "", os.ErrNotExist
	default:
		return "", os.ErrNotExist
	}
}
