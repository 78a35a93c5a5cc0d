// Package models defines data structures shared by the handlers and
// templates.
package models

import "html/template"

// ToolLink is one entry of the navigation menu.
type ToolLink struct {
	ID    string
	Title string
	// Href is the hash location that selects the tool, e.g. "#peeler".
	Href   string
	Active bool
}

// Shell holds everything the page shell template needs.
type Shell struct {
	Title    string
	SiteName string
	Tools    []ToolLink
	// DefaultTool is navigated to when the location names no registered tool.
	DefaultTool string
	// ActiveTool and Content restore the session's current tool on reload.
	ActiveTool string
	Content    template.HTML
}

// ImageInfo describes one loaded rotator image.
type ImageInfo struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	Rotation int    `json:"rotation"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int    `json:"size"`
	// SizeHuman is Size formatted for display, e.g. "12 kB".
	SizeHuman   string `json:"sizeHuman"`
	PreviewURL  string `json:"previewUrl"`
	DownloadURL string `json:"downloadUrl"`
}

// UploadResult answers a rotator upload.
type UploadResult struct {
	Images []ImageInfo `json:"images"`
	// Skipped carries one warning per rejected file.
	Skipped []string `json:"skipped"`
}

// RotateResult answers a single-image rotation.
type RotateResult struct {
	Changed bool       `json:"changed"`
	Image   *ImageInfo `json:"image,omitempty"`
}

// PeelResult is the JSON form of a peel response.
type PeelResult struct {
	Lines []string `json:"lines"`
}
