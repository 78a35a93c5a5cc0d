package handlers

import (
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// ownExtensions is checked before the OS MIME registry, which on some
// systems lacks an entry for newer image formats such as .webp.
var ownExtensions = map[string]string{
	".webp": "image/webp",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".avif": "image/avif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

// typeForName returns the MIME type registered for the file extension of
// name, or "" when none is known.
func typeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := ownExtensions[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

// declaredType returns the media type the client declared for an uploaded
// file. Clients that send no part Content-Type are taken at their word by
// the file extension; the bytes themselves are never sniffed.
func declaredType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return typeForName(fh.Filename)
}
