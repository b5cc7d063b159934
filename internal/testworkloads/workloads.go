package testworkloads

import (
	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
)

const (
	// HTTPPort is the name of the port served by HTTPServer.
	HTTPPort = "http"

	defaultServerImage = "registry.access.redhat.com/ubi9/httpd-24:latest"
	defaultToolsImage  = "registry.access.redhat.com/ubi9/ubi-minimal:latest"
	serverPort         = 8080
)

// HTTPServer serves HTTP on HTTPPort and is waited for until the port answers.
type HTTPServer struct {
	Image string
}

// Name implements Workload.
func (HTTPServer) Name() string {
	return "server"
}

// Configure implements Workload.
func (w HTTPServer) Configure(builder *tempjobs.JobBuilder) *tempjobs.JobBuilder {
	return builder.
		Image(imageOrDefault(w.Image, defaultServerImage)).
		Port(HTTPPort, serverPort, true).
		Registration("server", "http", HTTPPort)
}

// HTTPClient polls Target forever. Target is usually an address of an HTTPServer job.
type HTTPClient struct {
	Image  string
	Target string
}

// Name implements Workload.
func (HTTPClient) Name() string {
	return "client"
}

// Configure implements Workload.
func (w HTTPClient) Configure(builder *tempjobs.JobBuilder) *tempjobs.JobBuilder {
	return builder.
		Image(imageOrDefault(w.Image, defaultToolsImage)).
		Env("TARGET", w.Target).
		Command("/bin/sh", "-c", `while true; do curl -sf "http://${TARGET}/" >/dev/null; sleep 5; done`)
}

// Sleeper runs without any port.
type Sleeper struct {
	Image string
}

// Name implements Workload.
func (Sleeper) Name() string {
	return "sleeper"
}

// Configure implements Workload.
func (w Sleeper) Configure(builder *tempjobs.JobBuilder) *tempjobs.JobBuilder {
	return builder.
		Image(imageOrDefault(w.Image, defaultToolsImage)).
		Command("/bin/sh", "-c", "sleep 3600")
}

func imageOrDefault(image, fallback string) string {
	if image == "" {
		return fallback
	}

	return image
}
