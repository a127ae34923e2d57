package assets

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moby/patternmatcher"
	apperrors "github.com/savaki/image-deployer/internal/errors"
)

// ContextFile is one file selected into a build context
type ContextFile struct {
	// Rel is the slash-separated path relative to the context root
	Rel string
	// Abs is the absolute path on disk
	Abs string
	// Size in bytes
	Size int64
	// Mode is the file mode
	Mode fs.FileMode
}

// CollectContext walks dir and returns the files that belong in the build
// context after applying the exclusion patterns. The build file itself is
// always included, even when an exclusion pattern would match it. Results are
// sorted by relative path.
func CollectContext(dir, file string, exclude []string) ([]ContextFile, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve build context %q: %w", dir, err)
	}

	buildFile := filepath.ToSlash(filepath.Clean(file))
	if _, err := os.Stat(filepath.Join(root, buildFile)); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrBuildFileNotFound, file)
	}

	matcher, err := patternmatcher.New(exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclusion patterns: %w", err)
	}

	var files []ContextFile
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if excluded, _ := matcher.MatchesOrParentMatches(rel); excluded {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if rel != buildFile {
			if excluded, _ := matcher.MatchesOrParentMatches(rel); excluded {
				return nil
			}
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, ContextFile{
			Rel:  rel,
			Abs:  p,
			Size: info.Size(),
			Mode: info.Mode(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk build context: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrEmptyBuildContext, dir)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

// ContextHash computes the content address of a build context: a sha256 over
// the relative path and bytes of every selected file plus the build file path.
// The same inputs always hash to the same value, independent of file order or
// timestamps.
func ContextHash(files []ContextFile, buildFile string) (string, error) {
	sorted := append([]ContextFile(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rel < sorted[j].Rel })

	h := sha256.New()
	io.WriteString(h, "file:"+filepath.ToSlash(buildFile)+"\x00")
	for _, f := range sorted {
		io.WriteString(h, f.Rel+"\x00")

		src, err := os.Open(f.Abs)
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", f.Rel, err)
		}
		_, err = io.Copy(h, src)
		src.Close()
		if err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", f.Rel, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// TarContext packages the selected files into an uncompressed tar stream
// suitable for a docker build.
func TarContext(files []ContextFile) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for _, f := range files {
		hdr := &tar.Header{
			Name: f.Rel,
			Mode: int64(f.Mode.Perm()),
			Size: f.Size,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("failed to write tar header for %s: %w", f.Rel, err)
		}

		src, err := os.Open(f.Abs)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Rel, err)
		}
		_, err = io.Copy(tw, src)
		src.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to tar %s: %w", f.Rel, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize build context tar: %w", err)
	}
	return &buf, nil
}

// NormalizeBuildFile returns the slash-separated, cleaned build file path
func NormalizeBuildFile(file string) string {
	return filepath.ToSlash(filepath.Clean(strings.TrimSpace(file)))
}
