package tempjobs_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/fakecluster"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
)

var _ = Describe("JobBuilder", func() {
	var (
		cluster *fakecluster.Cluster
		jobs    *tempjobs.TemporaryJobs
	)

	BeforeEach(func() {
		cluster = fakecluster.New()
		jobs = tempjobs.New(cluster, fastOptions(tempjobs.WithProber(alwaysOpen{}))...)
		Expect(jobs.Start()).To(Succeed())
		DeferCleanup(func() {
			Expect(jobs.Finish(false)).To(Succeed())
		})
	})

	expectConfigurationError := func(err error, reason string) {
		var configErr *tempjobs.ConfigurationError
		ExpectWithOffset(1, errors.As(err, &configErr)).To(BeTrue(), "unexpected error %v", err)
		ExpectWithOffset(1, configErr.Reason).To(ContainSubstring(reason))
	}

	It("chains every call on the same builder", func() {
		builder := jobs.Job()
		Expect(builder.Image("busybox")).To(BeIdenticalTo(builder))
		Expect(builder.Host("node-2")).To(BeIdenticalTo(builder))
		Expect(builder.Port("http", 8080, true)).To(BeIdenticalTo(builder))
		Expect(builder.Registration("svc", "http", "http")).To(BeIdenticalTo(builder))
		Expect(builder.Env("A", "1")).To(BeIdenticalTo(builder))
		Expect(builder.ImageFromBuild()).To(BeIdenticalTo(builder))
	})

	It("lets later calls overwrite earlier ones", func() {
		job, err := jobs.Job().
			Image("busybox:1").
			Image("busybox:2").
			Port("http", 80, false).
			Port("http", 8080, false).
			Env("MODE", "a").
			Env("MODE", "b").
			Registration("svc", "http", "http").
			Registration("svc", "http", "http").
			Deploy()
		Expect(err).ToNot(HaveOccurred())

		spec := job.Spec()
		Expect(spec.Image.Name).To(Equal("busybox:2"))
		Expect(spec.Ports).To(HaveKeyWithValue("http", tempjobs.PortSpec{ContainerPort: 8080}))
		Expect(spec.Env).To(Equal(map[string]string{"MODE": "b"}))
		Expect(spec.Registrations).To(HaveLen(1))
	})

	It("accepts calls in any order", func() {
		job, err := jobs.Job().Env("A", "1").Port("p", 9000, false).Host("node-3").Image("busybox").Deploy()
		Expect(err).ToNot(HaveOccurred())
		Expect(job.Host()).To(Equal("node-3"))
	})

	It("reports a missing image as a configuration error", func() {
		_, err := jobs.Job().Deploy()
		expectConfigurationError(err, "no image")
		Expect(jobs.Jobs()).To(BeEmpty())
	})

	It("reports a missing host as a configuration error", func() {
		noHost := tempjobs.New(cluster, tempjobs.WithProber(alwaysOpen{}))
		Expect(noHost.Start()).To(Succeed())
		DeferCleanup(noHost.Finish, false)

		_, err := noHost.Job().Image("busybox").Deploy()
		expectConfigurationError(err, "no host")
	})

	It("rejects invalid ports", func() {
		_, err := jobs.Job().Image("busybox").Port("http", 70000, true).Deploy()
		expectConfigurationError(err, "out of range")

		_, err = jobs.Job().Image("busybox").Port("", 80, true).Deploy()
		expectConfigurationError(err, "port name")
	})

	It("rejects registrations of unknown ports", func() {
		_, err := jobs.Job().Image("busybox").Registration("svc", "http", "missing").Deploy()
		expectConfigurationError(err, "unknown port missing")
	})

	It("overrides the configured host with DeployTo", func() {
		job, err := jobs.Job().Image("busybox").Host("node-2").DeployTo("node-9")
		Expect(err).ToNot(HaveOccurred())
		Expect(job.Spec().Host).To(Equal("node-9"))
	})

	It("falls back to the default host", func() {
		job, err := jobs.Job().Image("busybox").Deploy()
		Expect(err).ToNot(HaveOccurred())
		Expect(job.Host()).To(Equal("node-1"))
	})

	It("freezes the spec at deploy time", func() {
		builder := jobs.Job().Image("busybox").Env("A", "1")
		job, err := builder.Deploy()
		Expect(err).ToNot(HaveOccurred())

		builder.Env("A", "2")
		Expect(job.Spec().Env).To(HaveKeyWithValue("A", "1"))
	})

	It("prefixes generated names", func() {
		job, err := jobs.Job().Name("web").Image("busybox").Deploy()
		Expect(err).ToNot(HaveOccurred())
		Expect(job.Spec().Name).To(MatchRegexp(`^tmp-web-[0-9a-f]{12}$`))
	})
})
