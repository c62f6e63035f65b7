package handlers

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// OpenAPIHandler publishes the API description. An operator-supplied file
// wins over the document compiled into the binary, and is re-read on every
// request so edits show up without a restart.
type OpenAPIHandler struct {
	path     string
	embedded []byte
}

// NewOpenAPIHandler serves path when it exists, else embedded.
func NewOpenAPIHandler(path string, embedded []byte) *OpenAPIHandler {
	return &OpenAPIHandler{path: path, embedded: embedded}
}

func (h *OpenAPIHandler) RegisterRoutes(r *mux.Router) {
	for _, p := range []string{"/api/openapi.yaml", "/api/v1/openapi.yaml"} {
		r.HandleFunc(p, h.ServeYAML).Methods(http.MethodGet)
	}
	r.HandleFunc("/api/v1/openapi.json", h.ServeJSON).Methods(http.MethodGet)
}

func (h *OpenAPIHandler) document() ([]byte, error) {
	if h.path != "" {
		data, err := os.ReadFile(h.path)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if len(h.embedded) == 0 {
		return nil, fs.ErrNotExist
	}
	return h.embedded, nil
}

// load writes the error response itself when no document can be read.
func (h *OpenAPIHandler) load(w http.ResponseWriter) ([]byte, bool) {
	data, err := h.document()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		respondError(w, http.StatusNotFound, "OpenAPI document not found")
		return nil, false
	case err != nil:
		respondError(w, http.StatusInternalServerError, "OpenAPI document unreadable")
		return nil, false
	}
	return data, true
}

func (h *OpenAPIHandler) ServeYAML(w http.ResponseWriter, _ *http.Request) {
	data, ok := h.load(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}

// ServeJSON converts the YAML document for clients that only read JSON.
func (h *OpenAPIHandler) ServeJSON(w http.ResponseWriter, _ *http.Request) {
	data, ok := h.load(w)
	if !ok {
		return
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		respondError(w, http.StatusInternalServerError, "OpenAPI document is not valid YAML")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}
