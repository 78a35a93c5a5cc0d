package handlers

import (
	"encoding/json"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"toolshed/models"
	"toolshed/peeler"
)

// maxPeelBody caps the pasted text accepted by the peel endpoint.
const maxPeelBody = 8 << 20

type peelRequest struct {
	Text          string `json:"text"`
	KeepExtension bool   `json:"keepExtension"`
}

// PeelHandler extracts filenames from posted text. It accepts a form or a
// JSON body and answers with newline separated text, or JSON when the
// client asks for it.
func PeelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxPeelBody)

		var req peelRequest
		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if ct == "application/json" {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid JSON body", http.StatusBadRequest)
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "Invalid form body", http.StatusBadRequest)
				return
			}
			req.Text = r.PostFormValue("text")
			req.KeepExtension = formBool(r.PostFormValue("keepExtension"))
		}

		lines := peeler.Extract(req.Text, req.KeepExtension)
		log.Printf("peel extract    ip=%-15s  tokens=%-5d  keep_ext=%t", clientIP(r), len(lines), req.KeepExtension)

		if strings.Contains(r.Header.Get("Accept"), "application/json") {
			writeJSON(w, http.StatusOK, models.PeelResult{Lines: lines})
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(strings.Join(lines, "\n")))
	}
}

// formBool reads an HTML checkbox value. Browsers send "on" for a checked
// box and nothing for an unchecked one.
func formBool(v string) bool {
	if v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}
