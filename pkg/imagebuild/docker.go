package imagebuild

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
)

// ImageAPI is the part of the docker client used to build images.
type ImageAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
}

// DockerBuilder builds the Dockerfile of a directory and tags the result with a unique tag.
type DockerBuilder struct {
	Dir        string
	Repository string
	BuildArgs  map[string]*string
	client     ImageAPI
}

// NewDockerBuilder returns a DockerBuilder using a docker client configured from the environment.
func NewDockerBuilder(dir, repository string) (*DockerBuilder, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return NewDockerBuilderWithClient(cli, dir, repository), nil
}

// NewDockerBuilderWithClient returns a DockerBuilder using api.
func NewDockerBuilderWithClient(api ImageAPI, dir, repository string) *DockerBuilder {
	return &DockerBuilder{Dir: dir, Repository: repository, client: api}
}

// BuildImage builds the image and returns its tag.
func (b *DockerBuilder) BuildImage(ctx context.Context) (string, error) {
	if b.client == nil {
		return "", fmt.Errorf("docker client not initialized")
	}

	if strings.TrimSpace(b.Dir) == "" {
		return "", fmt.Errorf("build directory cannot be empty")
	}

	if strings.TrimSpace(b.Repository) == "" {
		return "", fmt.Errorf("image repository cannot be empty")
	}

	tag := fmt.Sprintf("%s:%s", b.Repository, uuid.NewString())

	buildCtx, err := archive.TarWithOptions(b.Dir, &archive.TarOptions{})
	if err != nil {
		return "", fmt.Errorf("create build context: %w", err)
	}
	defer buildCtx.Close()

	glog.V(params.LogLevel).Infof("Building image %s from %s", tag, b.Dir)

	resp, err := b.client.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{tag},
		Remove:      true,
		ForceRemove: true,
		BuildArgs:   b.BuildArgs,
	})
	if err != nil {
		return "", fmt.Errorf("docker image build: %w", err)
	}
	defer resp.Body.Close()

	if err := consumeBuildOutput(resp.Body); err != nil {
		return "", err
	}

	return tag, nil
}

type buildMessage struct {
	Stream      string `json:"stream"`
	Status      string `json:"status"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

func consumeBuildOutput(body io.Reader) error {
	decoder := json.NewDecoder(body)

	for {
		var msg buildMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}

			return fmt.Errorf("decode build output: %w", err)
		}

		if errMsg := strings.TrimSpace(msg.Error); errMsg != "" {
			return fmt.Errorf("docker image build: %s", errMsg)
		}

		if errMsg := strings.TrimSpace(msg.ErrorDetail.Message); errMsg != "" {
			return fmt.Errorf("docker image build: %s", errMsg)
		}

		if line := strings.TrimSpace(msg.Stream + msg.Status); line != "" {
			glog.V(params.Log100Level).Info(line)
		}
	}
}
