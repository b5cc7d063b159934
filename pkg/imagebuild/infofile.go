package imagebuild

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
	"sigs.k8s.io/yaml"
)

// DefaultInfoFilePaths are the locations build tooling writes the image info file to.
var DefaultInfoFilePaths = []string{"target/image_info.json", "image_info.json"}

// ImageInfo is the content of an image info file.
type ImageInfo struct {
	Image string `json:"image"`
}

// InfoFile resolves the image produced by the project build from the first existing image info
// file. The build itself is run by the build tooling before the tests.
type InfoFile struct {
	Paths []string
}

// NewInfoFile returns an InfoFile looking at paths, or at DefaultInfoFilePaths when none are given.
func NewInfoFile(paths ...string) *InfoFile {
	if len(paths) == 0 {
		paths = DefaultInfoFilePaths
	}

	return &InfoFile{Paths: paths}
}

// BuildImage returns the image named in the first image info file found.
func (f *InfoFile) BuildImage(_ context.Context) (string, error) {
	for _, path := range f.Paths {
		content, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			glog.V(params.Log100Level).Infof("Image info file %s not found", path)

			continue
		}

		if err != nil {
			return "", fmt.Errorf("failed to read image info file %s: %w", path, err)
		}

		info := ImageInfo{}
		if err := yaml.Unmarshal(content, &info); err != nil {
			return "", fmt.Errorf("failed to parse image info file %s: %w", path, err)
		}

		if strings.TrimSpace(info.Image) == "" {
			return "", fmt.Errorf("image info file %s has no image", path)
		}

		glog.V(params.LogLevel).Infof("Using image %s from %s", info.Image, path)

		return info.Image, nil
	}

	return "", fmt.Errorf("no image info file found in %s; build the image first", strings.Join(f.Paths, ", "))
}
