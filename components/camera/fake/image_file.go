// Package fake implements frame sources backed by in-memory images or files on disk.
package fake

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"go.viam.com/proximity/components/camera"
	"go.viam.com/proximity/rimage"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
}

// StaticSource returns the same image Count times, or forever when Count is zero.
type StaticSource struct {
	img   image.Image
	count int

	mu     sync.Mutex
	served int
}

// NewStaticSource returns a source serving copies of img.
func NewStaticSource(img image.Image, count int) (*StaticSource, error) {
	if img == nil {
		return nil, errors.New("static source needs an image")
	}
	if count < 0 {
		return nil, errors.Errorf("frame count must not be negative, got %d", count)
	}
	return &StaticSource{img: img, count: count}, nil
}

// Next returns a copy of the image so callers can draw on it freely.
func (s *StaticSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count > 0 && s.served >= s.count {
		return nil, camera.ErrEndOfStream
	}
	s.served++
	return rimage.CloneImage(s.img), nil
}

// Close does nothing.
func (s *StaticSource) Close(ctx context.Context) error {
	return nil
}

// ImageDirSource plays back the images in a directory in lexical order.
type ImageDirSource struct {
	paths []string

	mu   sync.Mutex
	next int
	loop bool
}

// NewImageDirSource lists the image files in dir. When loop is true playback restarts at the
// first file instead of ending.
func NewImageDirSource(dir string, loop bool) (*ImageDirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read image directory %q", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no images found in %q", dir)
	}
	sort.Strings(paths)
	return &ImageDirSource{paths: paths, loop: loop}, nil
}

// Len returns the number of images found.
func (s *ImageDirSource) Len() int {
	return len(s.paths)
}

// Next decodes the next file.
func (s *ImageDirSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.next >= len(s.paths) {
		if !s.loop {
			s.mu.Unlock()
			return nil, camera.ErrEndOfStream
		}
		s.next = 0
	}
	path := s.paths[s.next]
	s.next++
	s.mu.Unlock()

	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %q", path)
	}
	return img, nil
}

// Close does nothing.
func (s *ImageDirSource) Close(ctx context.Context) error {
	return nil
}

var (
	_ camera.VideoSource = (*StaticSource)(nil)
	_ camera.VideoSource = (*ImageDirSource)(nil)
)
