package sandbox

import (
	"net"
	"os/exec"
	"sync"

	logger "github.com/sirupsen/logrus"
)

// UnsupportedMessage is reported when the host cannot run a preview at all,
// as opposed to a preview that failed.
const UnsupportedMessage = "Live preview needs node and npm on PATH and a loopback port to serve from."

var (
	supportedOnce sync.Once
	supported     bool
)

// Supported reports whether this host can run the local sandbox runtime. The probe
// runs once per process; later calls return the cached answer.
func Supported() bool {
	supportedOnce.Do(func() {
		supported = probe(exec.LookPath, listenLoopback)
		logger.Debugf("[sandbox] runtime supported: %v", supported)
	})
	return supported
}

// probe never panics; any failure while probing means unsupported.
func probe(lookPath func(string) (string, error), listen func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	for _, bin := range []string{"node", "npm"} {
		if _, err := lookPath(bin); err != nil {
			return false
		}
	}
	return listen() == nil
}

func listenLoopback() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	return ln.Close()
}
