package tempjobs_test

import (
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
)

var _ = Describe("Probers", func() {
	var (
		listener net.Listener
		port     int
	)

	BeforeEach(func() {
		var err error
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(func() { _ = listener.Close() })

		go func() {
			for {
				conn, err := listener.Accept()
				if err != nil {
					return
				}

				_ = conn.Close()
			}
		}()

		port = listener.Addr().(*net.TCPAddr).Port
	})

	It("succeeds against a listening port", func() {
		Expect(tempjobs.DefaultProber{}.Probe("127.0.0.1", port)).To(BeTrue())
	})

	It("fails against a closed port", func() {
		Expect(listener.Close()).To(Succeed())

		prober := tempjobs.DefaultProber{DialTimeout: 200 * time.Millisecond}
		Expect(prober.Probe("127.0.0.1", port)).To(BeFalse())
	})

	It("redirects probes to the target host", func() {
		recorder := newScriptedProber(port)
		redirect := tempjobs.RedirectProber{Target: "127.0.0.1", Prober: recorder}

		Expect(redirect.Probe("node-1", port)).To(BeTrue())
		Expect(recorder.Probes()).To(Equal([]int{port}))

		Expect(tempjobs.RedirectProber{Target: "127.0.0.1"}.Probe("node-1", port)).To(BeTrue())
	})
})
