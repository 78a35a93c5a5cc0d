package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"toolshed/models"
	"toolshed/rotator"
	"toolshed/session"
)

// archiveFailedMsg is shown when the zip archive cannot be built.
const archiveFailedMsg = "Failed to create zip file. Please try downloading images individually."

// RotatorHandlers serves the WebP rotator's API for one session manager.
type RotatorHandlers struct {
	Sessions *session.Manager
	// MaxUpload caps the size of an upload request body in bytes.
	MaxUpload int64
}

func imageInfo(img *rotator.Image) models.ImageInfo {
	size := len(img.Bytes())
	base := fmt.Sprintf("/api/rotator/images/%d", img.ID)
	w, h := img.Width, img.Height
	if img.Rotation == 90 || img.Rotation == 270 {
		w, h = h, w
	}
	return models.ImageInfo{
		ID:          img.ID,
		Filename:    img.Filename,
		Rotation:    img.Rotation,
		Width:       w,
		Height:      h,
		Size:        size,
		SizeHuman:   humanize.Bytes(uint64(size)),
		PreviewURL:  fmt.Sprintf("%s/preview?r=%d", base, img.Rotation),
		DownloadURL: base,
	}
}

func imageInfos(set *rotator.Set) []models.ImageInfo {
	infos := make([]models.ImageInfo, 0, set.Len())
	for _, img := range set.Images() {
		infos = append(infos, imageInfo(img))
	}
	return infos
}

// Upload replaces the session's images with the WebP files of a multipart
// "files" field. Other files are skipped and reported.
func (h *RotatorHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.Sessions, w, r)
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	var uploads []rotator.Upload
	var total int64
	for _, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			http.Error(w, "Could not read upload", http.StatusBadRequest)
			return
		}
		total += int64(len(data))
		uploads = append(uploads, rotator.Upload{
			Name:        fh.Filename,
			ContentType: declaredType(fh),
			Data:        data,
		})
	}

	set, skipped := rotator.Load(uploads)
	s.ReplaceImages(set)

	res := models.UploadResult{Images: imageInfos(set), Skipped: []string{}}
	for _, err := range skipped {
		log.Printf("rotate skip     ip=%-15s  err=%v", clientIP(r), err)
		res.Skipped = append(res.Skipped, err.Error())
	}
	log.Printf("rotate upload   ip=%-15s  files=%-3d  loaded=%-3d  size=%s",
		clientIP(r), len(uploads), set.Len(), humanize.Bytes(uint64(total)))
	writeJSON(w, http.StatusOK, res)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// RotateOne rotates image {id} by ?deg=. An unknown id changes nothing.
func (h *RotatorHandlers) RotateOne(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.Sessions, w, r)
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusOK, models.RotateResult{})
		return
	}
	deg, ok := degrees(w, r)
	if !ok {
		return
	}

	var res models.RotateResult
	err = s.Images(func(set *rotator.Set) error {
		start := time.Now()
		changed, err := set.Rotate(id, deg)
		if err != nil {
			return err
		}
		res.Changed = changed
		if img, ok := set.Get(id); ok && changed {
			info := imageInfo(img)
			res.Image = &info
			log.Printf("rotate image    id=%-3d  deg=%-4d  angle=%-3d  duration=%s",
				id, deg, img.Rotation, time.Since(start).Round(time.Millisecond))
		}
		return nil
	})
	if err != nil {
		rotateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RotateAll rotates every loaded image by ?deg=.
func (h *RotatorHandlers) RotateAll(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.Sessions, w, r)
	deg, ok := degrees(w, r)
	if !ok {
		return
	}

	var infos []models.ImageInfo
	err := s.Images(func(set *rotator.Set) error {
		start := time.Now()
		if err := set.RotateAll(deg); err != nil {
			return err
		}
		infos = imageInfos(set)
		log.Printf("rotate all      images=%-3d  deg=%-4d  duration=%s",
			set.Len(), deg, time.Since(start).Round(time.Millisecond))
		return nil
	})
	if err != nil {
		rotateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.UploadResult{Images: infos, Skipped: []string{}})
}

// Images lists the session's loaded images.
func (h *RotatorHandlers) Images(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.Sessions, w, r)
	var infos []models.ImageInfo
	s.Images(func(set *rotator.Set) error {
		infos = imageInfos(set)
		return nil
	})
	writeJSON(w, http.StatusOK, models.UploadResult{Images: infos, Skipped: []string{}})
}

func degrees(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("deg")
	if raw == "" {
		raw = "90"
	}
	deg, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "deg must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return deg, true
}

func rotateError(w http.ResponseWriter, err error) {
	if errors.Is(err, rotator.ErrInvalidDelta) {
		http.Error(w, "Rotation must be a multiple of 90 degrees", http.StatusBadRequest)
		return
	}
	log.Printf("rotate error    err=%v", err)
	http.Error(w, "Could not render rotated image", http.StatusInternalServerError)
}

// Download serves image {id} as an attachment named rotated_<name>.
func (h *RotatorHandlers) Download(w http.ResponseWriter, r *http.Request) {
	h.serveImage(w, r, true)
}

// Preview serves image {id}'s current bytes inline.
func (h *RotatorHandlers) Preview(w http.ResponseWriter, r *http.Request) {
	h.serveImage(w, r, false)
}

func (h *RotatorHandlers) serveImage(w http.ResponseWriter, r *http.Request, attachment bool) {
	s := currentSession(h.Sessions, w, r)
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	var art *rotator.Artifact
	s.Images(func(set *rotator.Set) error {
		if img, ok := set.Get(id); ok {
			art = rotator.ImageArtifact(img)
		}
		return nil
	})
	if art == nil {
		http.NotFound(w, r)
		return
	}
	if attachment {
		log.Printf("export image    ip=%-15s  file=%s  size=%s", clientIP(r), art.Name, humanize.Bytes(uint64(len(art.Data))))
		writeArtifact(w, art)
		return
	}
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(art.Data)
}

// Export offers the whole set: nothing for an empty set, the image itself
// for one, and a zip archive otherwise.
func (h *RotatorHandlers) Export(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.Sessions, w, r)
	start := time.Now()

	// The artifact is built under the session lock; writing it to a
	// possibly throttled client happens after the lock is released.
	var art *rotator.Artifact
	err := s.Images(func(set *rotator.Set) error {
		var err error
		art, err = rotator.Export(set)
		return err
	})

	var archiveErr *rotator.ArchiveError
	switch {
	case errors.Is(err, rotator.ErrEmpty):
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.As(err, &archiveErr):
		log.Printf("export error    ip=%-15s  err=%v", clientIP(r), err)
		http.Error(w, archiveFailedMsg, http.StatusInternalServerError)
		return
	case err != nil:
		log.Printf("export error    ip=%-15s  err=%v", clientIP(r), err)
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}

	writeArtifact(w, art)
	log.Printf("export complete ip=%-15s  file=%s  size=%s  duration=%s",
		clientIP(r), art.Name, humanize.Bytes(uint64(len(art.Data))), time.Since(start).Round(time.Millisecond))
}

func writeArtifact(w http.ResponseWriter, art *rotator.Artifact) {
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, art.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(art.Data)
}
