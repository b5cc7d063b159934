package imagebuild_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/imagebuild"
)

type fakeImageAPI struct {
	output  string
	err     error
	options types.ImageBuildOptions
	context []byte
}

func (f *fakeImageAPI) ImageBuild(_ context.Context, buildContext io.Reader,
	options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	f.options = options

	content, err := io.ReadAll(buildContext)
	if err != nil {
		return types.ImageBuildResponse{}, err
	}

	f.context = content

	if f.err != nil {
		return types.ImageBuildResponse{}, f.err
	}

	return types.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(f.output))}, nil
}

var _ = Describe("DockerBuilder", func() {
	var (
		dir string
		api *fakeImageAPI
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM busybox\n"), 0o600)).To(Succeed())
		api = &fakeImageAPI{output: `{"stream":"Step 1/1 : FROM busybox\n"}` + "\n" +
			`{"stream":"Successfully built 0123\n"}` + "\n"}
	})

	It("tags the build with a unique tag", func() {
		builder := imagebuild.NewDockerBuilderWithClient(api, dir, "registry.local/app")

		first, err := builder.BuildImage(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(first).To(MatchRegexp(`^registry\.local/app:[0-9a-f-]{36}$`))
		Expect(api.options.Tags).To(Equal([]string{first}))
		Expect(api.options.Remove).To(BeTrue())
		Expect(api.context).ToNot(BeEmpty())

		second, err := builder.BuildImage(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(second).ToNot(Equal(first))
	})

	It("surfaces errors reported in the build output", func() {
		api.output = `{"errorDetail":{"message":"unknown instruction: FORM"},"error":"unknown instruction: FORM"}` + "\n"

		_, err := imagebuild.NewDockerBuilderWithClient(api, dir, "app").BuildImage(context.Background())
		Expect(err).To(MatchError(ContainSubstring("unknown instruction")))
	})

	It("surfaces daemon errors", func() {
		api.err = errors.New("cannot connect to the docker daemon")

		_, err := imagebuild.NewDockerBuilderWithClient(api, dir, "app").BuildImage(context.Background())
		Expect(err).To(MatchError(ContainSubstring("cannot connect")))
	})

	It("validates its configuration", func() {
		_, err := imagebuild.NewDockerBuilderWithClient(api, "", "app").BuildImage(context.Background())
		Expect(err).To(HaveOccurred())

		_, err = imagebuild.NewDockerBuilderWithClient(api, dir, "").BuildImage(context.Background())
		Expect(err).To(HaveOccurred())

		_, err = (&imagebuild.DockerBuilder{Dir: dir, Repository: "app"}).BuildImage(context.Background())
		Expect(err).To(MatchError(ContainSubstring("not initialized")))
	})
})
