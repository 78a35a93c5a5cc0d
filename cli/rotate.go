package cli

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"toolshed/rotator"
)

func newRotateCommand() *cobra.Command {
	var (
		deg int
		out string
	)
	cmd := &cobra.Command{
		Use:   "rotate --deg N [--out DIR|FILE.zip] file...",
		Short: "Rotate WebP images by quarter turns",
		Long: `Rotates every named WebP image clockwise by --deg degrees, a multiple of 90.
Files that are not WebP images are skipped with a warning.

With --out naming a directory, a single image is written as rotated_<name>
and several images as rotated_webp_images.zip. With --out naming a .zip
file, all images go into that archive.

Examples:
  toolshed rotate --deg 90 photo.webp
  toolshed rotate --deg -90 --out turned.zip *.webp`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRotate(cmd, args, deg, out)
		},
	}
	cmd.Flags().IntVarP(&deg, "deg", "d", 90, "clockwise rotation in degrees, a multiple of 90")
	cmd.Flags().StringVarP(&out, "out", "o", ".", "output directory or .zip file")
	return cmd
}

// declaredType stands in for the media type a browser would declare for a
// local file.
func declaredType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".webp" {
		return "image/webp"
	}
	return mime.TypeByExtension(ext)
}

func runRotate(cmd *cobra.Command, args []string, deg int, out string) error {
	if deg%90 != 0 {
		return rotator.ErrInvalidDelta
	}

	uploads := make([]rotator.Upload, 0, len(args))
	for _, name := range args {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		uploads = append(uploads, rotator.Upload{
			Name:        filepath.Base(name),
			ContentType: declaredType(name),
			Data:        data,
		})
	}

	set, skipped := rotator.Load(uploads)
	for _, err := range skipped {
		warnf(cmd, "%v", err)
	}
	if err := set.RotateAll(deg); err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(out), ".zip") {
		return writeZip(cmd, set, out)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}

	art, err := rotator.Export(set)
	var archiveErr *rotator.ArchiveError
	switch {
	case errors.Is(err, rotator.ErrEmpty):
		return errors.New("no WebP images to rotate")
	case errors.As(err, &archiveErr):
		warnf(cmd, "could not create zip file (%v), writing images individually", archiveErr.Err)
		return writeEach(cmd, set, out)
	case err != nil:
		return err
	}
	return writeArtifact(cmd, art, filepath.Join(out, art.Name))
}

func writeZip(cmd *cobra.Command, set *rotator.Set, path string) error {
	if set.Len() == 0 {
		return errors.New("no WebP images to rotate")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := rotator.WriteArchive(f, set); err != nil {
		f.Close()
		os.Remove(path)
		warnf(cmd, "could not create zip file (%v), writing images individually", err)
		return writeEach(cmd, set, filepath.Dir(path))
	}
	if err := f.Close(); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d images, %s)\n", path, set.Len(), humanize.Bytes(uint64(info.Size())))
	return nil
}

func writeEach(cmd *cobra.Command, set *rotator.Set, dir string) error {
	for _, img := range set.Images() {
		art := rotator.ImageArtifact(img)
		if err := writeArtifact(cmd, art, filepath.Join(dir, art.Name)); err != nil {
			return err
		}
	}
	return nil
}

func writeArtifact(cmd *cobra.Command, art *rotator.Artifact, path string) error {
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", path, humanize.Bytes(uint64(len(art.Data))))
	return nil
}
