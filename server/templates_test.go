package server

import (
	"html/template"
	"net/http/httptest"
	"strings"
	"testing"

	"toolshed/models"
)

// loadTestTemplates parses templates from the repository root on disk so
// the package tests don't need the embed FS from main.go.
func loadTestTemplates(t *testing.T) *Templates {
	t.Helper()
	tmpl, err := loadTemplatesFromDisk("..")
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	return tmpl
}

func TestTemplatesParse(t *testing.T) {
	loadTestTemplates(t)
}

func TestExecuteShell(t *testing.T) {
	tmpl := loadTestTemplates(t)

	data := &models.Shell{
		Title:       "Peeled Files | Dev Tools",
		SiteName:    "Dev Tools",
		DefaultTool: "peeler",
		ActiveTool:  "peeler",
		Tools: []models.ToolLink{
			{ID: "peeler", Title: "Peeled Files", Href: "#peeler", Active: true},
			{ID: "rotator", Title: "WebP Rotator", Href: "#rotator"},
		},
		Content: template.HTML(`<div id="peeler"></div>`),
	}

	w := httptest.NewRecorder()
	if err := tmpl.ExecuteShell(w, data); err != nil {
		t.Fatalf("ExecuteShell: %v", err)
	}
	if w.Code != 200 {
		t.Errorf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"<title>Peeled Files | Dev Tools</title>",
		`class="nav-link active" href="#peeler" data-tool="peeler"`,
		`href="#rotator"`,
		`data-default-tool="peeler"`,
		`<div id="peeler"></div>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestExecuteShellEscapesSiteName(t *testing.T) {
	tmpl := loadTestTemplates(t)
	w := httptest.NewRecorder()
	if err := tmpl.ExecuteShell(w, &models.Shell{Title: "<b>", SiteName: "<b>"}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(w.Body.String(), "<b>") {
		t.Error("site name was not escaped")
	}
}
