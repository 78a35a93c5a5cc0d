package rotator

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	// EntryPrefix is prepended to every exported filename.
	EntryPrefix = "rotated_"
	// ArchiveName is the download name of a multi-image export.
	ArchiveName = "rotated_webp_images.zip"

	webpType = "image/webp"
	zipType  = "application/zip"
)

// ArchiveError wraps a failure while building the zip archive. Individual
// image downloads are unaffected by it.
type ArchiveError struct{ Err error }

func (e *ArchiveError) Error() string { return "could not build archive: " + e.Err.Error() }
func (e *ArchiveError) Unwrap() error { return e.Err }

// Artifact is a single file ready to be offered as a download.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Export picks the download for the current set: ErrEmpty for no images,
// the image itself for exactly one, and a zip archive otherwise.
func Export(s *Set) (*Artifact, error) {
	switch s.Len() {
	case 0:
		return nil, ErrEmpty
	case 1:
		return ImageArtifact(s.images[0]), nil
	}

	var buf bytes.Buffer
	if err := WriteArchive(&buf, s); err != nil {
		return nil, err
	}
	return &Artifact{Name: ArchiveName, ContentType: zipType, Data: buf.Bytes()}, nil
}

// ImageArtifact returns the download for one image.
func ImageArtifact(img *Image) *Artifact {
	return &Artifact{
		Name:        EntryPrefix + img.Filename,
		ContentType: webpType,
		Data:        img.Bytes(),
	}
}

// WriteArchive writes every image of s into w as a Deflate-compressed zip,
// one entry per image, in id order. Repeated filenames get a " (n)" suffix
// so every entry name is unique.
func WriteArchive(w io.Writer, s *Set) error {
	zw := zip.NewWriter(w)
	now := time.Now()
	taken := make(map[string]bool, len(s.images))
	for _, img := range s.images {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entryName(img.Filename, taken),
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return &ArchiveError{Err: fmt.Errorf("entry %s: %w", img.Filename, err)}
		}
		if _, err := fw.Write(img.Bytes()); err != nil {
			return &ArchiveError{Err: fmt.Errorf("entry %s: %w", img.Filename, err)}
		}
	}
	if err := zw.Close(); err != nil {
		return &ArchiveError{Err: err}
	}
	return nil
}

// entryName returns the archive name for filename, numbered past any name
// already in taken, and marks it taken.
func entryName(filename string, taken map[string]bool) string {
	name := EntryPrefix + filename
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; taken[name]; n++ {
		name = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	taken[name] = true
	return name
}
