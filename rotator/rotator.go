// Package rotator holds a batch of decoded WebP images, rotates them by
// quarter turns and exports the result as a single download.
//
// A Set is owned by exactly one caller and is not safe for concurrent use;
// the web host guards each session's set with the session mutex.
package rotator

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/webp"
)

var (
	// ErrInvalidDelta is returned for rotations that are not quarter turns.
	ErrInvalidDelta = errors.New("rotation must be a multiple of 90 degrees")
	// ErrEmpty is returned by Export when no images are loaded.
	ErrEmpty = errors.New("no images loaded")
)

// SkipError describes an upload that was left out of a batch.
type SkipError struct {
	Name   string
	Reason string
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("skipped %s: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("skipped %s: %s", e.Name, e.Reason)
}

func (e *SkipError) Unwrap() error { return e.Err }

// Upload is one incoming file with the media type its sender declared.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Image is one loaded WebP image and its rotation state.
type Image struct {
	ID       int
	Filename string
	Original image.Image
	Source   []byte
	// Rotation is the cumulative clockwise angle, always one of 0, 90, 180, 270.
	Rotation int
	// Rendered holds the encoded output of the latest rotation; nil until
	// the image has been rotated at least once.
	Rendered []byte
	Width    int
	Height   int
}

// Bytes returns the most recent rendering, or the original bytes when the
// image was never rotated.
func (img *Image) Bytes() []byte {
	if img.Rendered != nil {
		return img.Rendered
	}
	return img.Source
}

// Set is an ordered collection of loaded images with unique ids.
type Set struct {
	images []*Image
	encode Encoder
}

// Option configures a Set.
type Option func(*Set)

// WithEncoder replaces the WebP encoder used for rendered rotations.
func WithEncoder(enc Encoder) Option {
	return func(s *Set) { s.encode = enc }
}

// IsWebP reports whether a declared media type names the WebP format.
func IsWebP(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "webp")
}

// Load decodes a batch of uploads into a fresh Set. Uploads that do not
// declare a WebP type, or that fail to decode, are skipped and reported in
// the returned slice; they never enter the set. Ids are assigned from 0 in
// input order among the accepted uploads.
func Load(uploads []Upload, opts ...Option) (*Set, []error) {
	s := NewSet(opts...)
	var skipped []error
	for _, up := range uploads {
		if !IsWebP(up.ContentType) {
			skipped = append(skipped, &SkipError{
				Name:   up.Name,
				Reason: fmt.Sprintf("not a WebP image (%s)", displayType(up.ContentType)),
			})
			continue
		}
		img, err := webp.Decode(bytes.NewReader(up.Data))
		if err != nil {
			skipped = append(skipped, &SkipError{Name: up.Name, Reason: "could not decode", Err: err})
			continue
		}
		b := img.Bounds()
		s.images = append(s.images, &Image{
			ID:       len(s.images),
			Filename: up.Name,
			Original: img,
			Source:   up.Data,
			Width:    b.Dx(),
			Height:   b.Dy(),
		})
	}
	return s, skipped
}

// NewSet returns an empty set.
func NewSet(opts ...Option) *Set {
	s := &Set{encode: EncodeWebP}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func displayType(ct string) string {
	if ct == "" {
		return "no type"
	}
	return ct
}

// Len returns the number of loaded images.
func (s *Set) Len() int { return len(s.images) }

// Images returns the loaded images in id order. The slice is a copy; the
// images themselves are shared.
func (s *Set) Images() []*Image {
	out := make([]*Image, len(s.images))
	copy(out, s.images)
	return out
}

// Get returns the image with the given id.
func (s *Set) Get(id int) (*Image, bool) {
	for _, img := range s.images {
		if img.ID == id {
			return img, true
		}
	}
	return nil, false
}

// Reset drops every loaded image.
func (s *Set) Reset() { s.images = nil }

// Rotate turns one image by delta degrees and re-renders it. It reports
// false, with no error, when no image has that id. On a render failure the
// image keeps its previous angle and rendering.
func (s *Set) Rotate(id, delta int) (bool, error) {
	if delta%90 != 0 {
		return false, ErrInvalidDelta
	}
	img, ok := s.Get(id)
	if !ok {
		return false, nil
	}
	angle := NormalizeAngle(img.Rotation + delta)
	rendered, err := s.render(img, angle)
	if err != nil {
		return false, fmt.Errorf("render %s: %w", img.Filename, err)
	}
	img.Rotation = angle
	img.Rendered = rendered
	return true, nil
}

// RotateAll applies delta to every image independently. It stops at the
// first render failure.
func (s *Set) RotateAll(delta int) error {
	if delta%90 != 0 {
		return ErrInvalidDelta
	}
	for _, img := range s.images {
		if _, err := s.Rotate(img.ID, delta); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeAngle maps any angle onto [0, 360).
func NormalizeAngle(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
