// Package assets builds container image assets from local source. A built
// asset is content-addressed: its tag is the hash of the build context, and it
// lives in a shared transient staging repository until promoted.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/daemon"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/rs/zerolog"
)

// BuildSpec describes one image build
type BuildSpec struct {
	// Directory is the build context root
	Directory string
	// File is the build file path, relative to the context root
	File string
	// Exclude lists patterns kept out of the build context
	Exclude []string
}

// Result identifies a built, pushed asset
type Result struct {
	// Hash is the content address of the build context
	Hash string
	// Reference is the transient staging reference, <staging-uri>:<hash>
	Reference string
}

// Builder builds image assets against a local Docker daemon and pushes them
// to a transient staging repository.
type Builder struct {
	docker     client.APIClient
	stagingURI string
	auth       authn.Authenticator
}

// NewBuilder creates a Builder pushing to the given staging repository URI
func NewBuilder(docker client.APIClient, stagingURI string, auth authn.Authenticator) *Builder {
	return &Builder{
		docker:     docker,
		stagingURI: stagingURI,
		auth:       auth,
	}
}

// NewDockerClient creates a Docker client from the environment
func NewDockerClient() (client.APIClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return cli, nil
}

// Build packages the build context, builds the image, and pushes it to the
// staging repository under its content hash. A missing build file or a failed
// build is fatal; nothing is retried here.
func (b *Builder) Build(ctx context.Context, spec BuildSpec) (result *Result, err error) {
	logger := zerolog.Ctx(ctx)

	defer func(begin time.Time) {
		logger.Info().
			Interface("error", err).
			Str("directory", spec.Directory).
			Str("file", spec.File).
			Dur("elapsed", time.Since(begin)).
			Msg("image build completed")
	}(time.Now())

	buildFile := NormalizeBuildFile(spec.File)
	files, err := CollectContext(spec.Directory, buildFile, spec.Exclude)
	if err != nil {
		return nil, err
	}

	hash, err := ContextHash(files, buildFile)
	if err != nil {
		return nil, err
	}
	reference := fmt.Sprintf("%s:%s", b.stagingURI, hash)

	logger.Info().
		Int("files", len(files)).
		Str("hash", hash).
		Msg("build context collected")

	tarStream, err := TarContext(files)
	if err != nil {
		return nil, err
	}

	resp, err := b.docker.ImageBuild(ctx, tarStream, build.ImageBuildOptions{
		Dockerfile: buildFile,
		Tags:       []string{reference},
		Remove:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("image build failed: %w", err)
	}
	defer resp.Body.Close()

	if err := drainBuildOutput(logger, resp.Body); err != nil {
		return nil, err
	}

	if err := b.push(ctx, reference); err != nil {
		return nil, err
	}

	return &Result{Hash: hash, Reference: reference}, nil
}

// drainBuildOutput consumes the docker build stream, surfacing any build
// error it carries.
func drainBuildOutput(logger *zerolog.Logger, body io.Reader) error {
	dec := json.NewDecoder(body)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to read build output: %w", err)
		}

		if msg.Error != nil {
			return fmt.Errorf("image build failed: %s", msg.Error.Message)
		}
		if msg.Stream != "" {
			logger.Debug().Msg(msg.Stream)
		}
	}
}

// push uploads the locally built image to the staging repository
func (b *Builder) push(ctx context.Context, reference string) error {
	tag, err := name.NewTag(reference)
	if err != nil {
		return fmt.Errorf("invalid staging reference %q: %w", reference, err)
	}

	img, err := daemon.Image(tag, daemon.WithClient(b.docker), daemon.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to read built image from daemon: %w", err)
	}

	opts := []remote.Option{remote.WithContext(ctx)}
	if b.auth != nil {
		opts = append(opts, remote.WithAuth(b.auth))
	} else {
		opts = append(opts, remote.WithAuthFromKeychain(authn.DefaultKeychain))
	}

	if err := remote.Write(tag, img, opts...); err != nil {
		return fmt.Errorf("failed to push %s: %w", reference, err)
	}
	return nil
}
