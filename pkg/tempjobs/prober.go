package tempjobs

import (
	"net"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
)

// DefaultProbeDialTimeout bounds a single connection attempt of DefaultProber.
const DefaultProbeDialTimeout = 2 * time.Second

// DefaultProber probes an endpoint by opening a TCP connection to it.
type DefaultProber struct {
	DialTimeout time.Duration
}

// Probe returns true when a TCP connection to host:port can be established.
func (p DefaultProber) Probe(host string, port int) bool {
	timeout := p.DialTimeout
	if timeout <= 0 {
		timeout = DefaultProbeDialTimeout
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))

	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		glog.V(params.Log100Level).Infof("Probe of %s failed: %v", address, err)

		return false
	}

	_ = conn.Close()

	return true
}

// RedirectProber sends every probe to Target instead of the requested host. It is used when the
// cluster reports logical host names that are only reachable through a local runtime address.
type RedirectProber struct {
	Target string
	Prober Prober
}

// Probe probes Target on the requested port.
func (p RedirectProber) Probe(host string, port int) bool {
	inner := p.Prober
	if inner == nil {
		inner = DefaultProber{}
	}

	glog.V(params.Log100Level).Infof("Redirecting probe of %s:%d to %s", host, port, p.Target)

	return inner.Probe(p.Target, port)
}
