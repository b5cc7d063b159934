package testworkloads_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rh-ecosystem-edge/tempjobs/internal/testworkloads"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/fakecluster"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
)

type openProber struct{}

func (openProber) Probe(string, int) bool { return true }

var _ = Describe("Workloads", func() {
	var jobs *tempjobs.TemporaryJobs

	BeforeEach(func() {
		jobs = tempjobs.New(fakecluster.New(),
			tempjobs.WithProber(openProber{}),
			tempjobs.WithDefaultHost("node-1"),
			tempjobs.WithPollInterval(5*time.Millisecond))
		Expect(jobs.Start()).To(Succeed())
		DeferCleanup(jobs.Finish, false)
	})

	It("wires a client to a server", func() {
		server, err := testworkloads.Deploy(jobs, testworkloads.HTTPServer{Image: "httpd"})
		Expect(err).ToNot(HaveOccurred())
		Expect(server.Spec().Ports).To(HaveKeyWithValue(testworkloads.HTTPPort, tempjobs.PortSpec{ContainerPort: 8080, Wait: true}))
		Expect(server.Spec().Name).To(HavePrefix("tmp-server-"))

		addresses, err := server.Addresses(testworkloads.HTTPPort)
		Expect(err).ToNot(HaveOccurred())

		client, err := testworkloads.Deploy(jobs, testworkloads.HTTPClient{Target: addresses[0]})
		Expect(err).ToNot(HaveOccurred())
		Expect(client.Spec().Env).To(HaveKeyWithValue("TARGET", addresses[0]))

		sleeper, err := testworkloads.Deploy(jobs, testworkloads.Sleeper{})
		Expect(err).ToNot(HaveOccurred())
		Expect(sleeper.Spec().Ports).To(BeEmpty())
		Expect(jobs.Jobs()).To(HaveLen(3))
	})

	It("rejects a nil workload", func() {
		_, err := testworkloads.Deploy(jobs, nil)
		Expect(err).To(HaveOccurred())
	})
})
