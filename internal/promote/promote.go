// Package promote copies a transient image asset into a durable repository
// reference. The copy preserves content: after promotion the durable
// reference resolves to the same image the build produced. Re-running with
// the same content and tag is a safe overwrite.
package promote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/rs/zerolog"
)

// Promoter copies images between registries
type Promoter struct {
	auth authn.Authenticator
}

// New creates a Promoter using the given registry authenticator. A nil
// authenticator falls back to the default keychain.
func New(auth authn.Authenticator) *Promoter {
	return &Promoter{auth: auth}
}

// Copy copies the image at src to dst. Both references must be resolvable in
// the same registry namespace the authenticator covers.
func (p *Promoter) Copy(ctx context.Context, src, dst string) (err error) {
	logger := zerolog.Ctx(ctx)

	defer func(begin time.Time) {
		logger.Info().
			Interface("error", err).
			Str("src", src).
			Str("dst", dst).
			Dur("elapsed", time.Since(begin)).
			Msg("image promotion completed")
	}(time.Now())

	srcRef, err := name.ParseReference(src)
	if err != nil {
		return fmt.Errorf("invalid source reference %q: %w", src, err)
	}
	dstRef, err := name.ParseReference(dst)
	if err != nil {
		return fmt.Errorf("invalid destination reference %q: %w", dst, err)
	}

	opts := []remote.Option{remote.WithContext(ctx)}
	if p.auth != nil {
		opts = append(opts, remote.WithAuth(p.auth))
	} else {
		opts = append(opts, remote.WithAuthFromKeychain(authn.DefaultKeychain))
	}

	desc, err := remote.Get(srcRef, opts...)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", src, err)
	}

	switch desc.MediaType {
	case types.OCIImageIndex, types.DockerManifestList:
		idx, err := desc.ImageIndex()
		if err != nil {
			return fmt.Errorf("failed to read index %s: %w", src, err)
		}
		if err := remote.WriteIndex(dstRef, idx, opts...); err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
	default:
		img, err := desc.Image()
		if err != nil {
			return fmt.Errorf("failed to read image %s: %w", src, err)
		}
		if err := remote.Write(dstRef, img, opts...); err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
	}

	return nil
}
