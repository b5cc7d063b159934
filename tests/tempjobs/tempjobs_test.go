package tempjobs

import (
	"context"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rh-ecosystem-edge/tempjobs/internal/inittools"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
	"github.com/rh-ecosystem-edge/tempjobs/internal/testworkloads"
	"github.com/rh-ecosystem-edge/tempjobs/internal/wait"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/imagebuild"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/kubegateway"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

var _ = Describe("Temporary jobs", Ordered, Label(params.Label), func() {
	var (
		gateway  *kubegateway.Gateway
		jobs     *tempjobs.TemporaryJobs
		prefix   = "live-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		deployed []tempjobs.JobID
	)

	ownJobs := func() []tempjobs.JobID {
		all, err := gateway.List(context.TODO())
		Expect(err).ToNot(HaveOccurred())

		var ids []tempjobs.JobID

		for id, spec := range all {
			if strings.HasPrefix(spec.Name, prefix+"-") {
				ids = append(ids, id)
			}
		}

		return ids
	}

	BeforeAll(func() {
		if !inittools.ClusterAvailable() {
			Skip("No cluster configured")
		}

		var err error
		gateway, err = inittools.Gateway(context.TODO())
		Expect(err).ToNot(HaveOccurred())
	})

	BeforeEach(func() {
		options := append(inittools.GeneralConfig.Options(), tempjobs.WithJobPrefix(prefix))

		if inittools.GeneralConfig.DefaultHost == "" {
			nodes, err := inittools.APIClient.K8sClient.CoreV1().Nodes().List(context.TODO(), metav1.ListOptions{})
			Expect(err).ToNot(HaveOccurred())
			Expect(nodes.Items).ToNot(BeEmpty(), "cluster has no nodes")

			options = append(options, tempjobs.WithDefaultHost(nodes.Items[0].Name))
		}

		if inittools.GeneralConfig.ImageRepository != "" {
			builder, err := imagebuild.NewDockerBuilder(
				inittools.GeneralConfig.DockerBuildDir, inittools.GeneralConfig.ImageRepository)
			Expect(err).ToNot(HaveOccurred())

			options = append(options, tempjobs.WithImageBuilder(builder))
		} else {
			options = append(options, tempjobs.WithImageBuilder(imagebuild.NewInfoFile()))
		}

		jobs = tempjobs.ForTest(GinkgoT(), gateway, options...)
	})

	It("deploys three jobs wired through the server address", func() {
		server, err := testworkloads.Deploy(jobs, testworkloads.HTTPServer{})
		Expect(err).ToNot(HaveOccurred())

		addresses, err := server.Addresses(testworkloads.HTTPPort)
		Expect(err).ToNot(HaveOccurred())
		Expect(addresses).ToNot(BeEmpty())
		glog.V(params.LogLevel).Infof("Server %s reachable at %v", server.ID(), addresses)

		client, err := testworkloads.Deploy(jobs, testworkloads.HTTPClient{Target: addresses[0]})
		Expect(err).ToNot(HaveOccurred())
		Expect(client.Spec().Env).To(HaveKeyWithValue("TARGET", addresses[0]))

		_, err = testworkloads.Deploy(jobs, testworkloads.Sleeper{})
		Expect(err).ToNot(HaveOccurred())

		deployed = ownJobs()
		Expect(deployed).To(HaveLen(3))
	})

	It("removed the jobs of the previous spec", func() {
		Expect(deployed).To(HaveLen(3), "previous spec did not deploy")

		for _, id := range deployed {
			Expect(wait.DeploymentDeleted(inittools.APIClient, id.String(), gateway.Namespace(),
				time.Second, 2*time.Minute)).To(Succeed())
		}

		Expect(wait.NoJobsWithPrefix(gateway, prefix, time.Second, time.Minute)).To(Succeed())
	})

	It("fails deploys issued outside of a running guard", func() {
		idle := tempjobs.New(gateway)

		_, err := idle.Job().Image("busybox").Deploy()
		Expect(err).To(MatchError(ContainSubstring("must be called in a BeforeEach or in the test method")))
		Expect(ownJobs()).To(BeEmpty())
	})

	It("deploys the image of the project build", func() {
		if inittools.GeneralConfig.ImageRepository == "" && !infoFileExists() {
			Skip("No image build configured")
		}

		job, err := jobs.Job().Name("built").ImageFromBuild().Deploy()
		Expect(err).ToNot(HaveOccurred())
		Expect(job.Spec().Image.Resolved()).To(BeTrue())
	})
})

func infoFileExists() bool {
	_, err := imagebuild.NewInfoFile().BuildImage(context.TODO())
	if err != nil {
		glog.V(params.Log100Level).Infof("Image info unavailable: %v", err)
	}

	return err == nil
}
