package server

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

var kindPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,63}$`)

// ResourceList is the body of GET /admin/resources/{kind}.
type ResourceList struct {
	Items []map[string]any `json:"items"`
	Total int              `json:"total"`
}

// ListResourcesHandler lists every stored item of a kind (transactions, merchants, ...).
func (s *Server) ListResourcesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := resourceKind(w, r)
		if !ok {
			return
		}
		s.resourceMu.RLock()
		items := make([]map[string]any, 0, len(s.resources[kind]))
		for _, item := range s.resources[kind] {
			items = append(items, copyItem(item))
		}
		s.resourceMu.RUnlock()

		writeJSON(w, http.StatusOK, ResourceList{Items: items, Total: len(items)})
	}
}

func (s *Server) GetResourceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := resourceKind(w, r)
		if !ok {
			return
		}
		s.resourceMu.RLock()
		item, _ := s.findResource(kind, mux.Vars(r)["id"])
		if item != nil {
			item = copyItem(item)
		}
		s.resourceMu.RUnlock()

		if item == nil {
			writeJSONError(w, http.StatusNotFound, "not_found", "Resource not found")
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// CreateResourceHandler stores a new item. A "name" is the only required field.
func (s *Server) CreateResourceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := resourceKind(w, r)
		if !ok {
			return
		}
		item, ok := decodeItem(w, r)
		if !ok {
			return
		}
		item["id"] = uuid.New().String()
		item["createdAt"] = time.Now().UTC().Format(time.RFC3339)

		s.resourceMu.Lock()
		s.resources[kind] = append(s.resources[kind], item)
		created := copyItem(item)
		s.resourceMu.Unlock()

		writeJSON(w, http.StatusCreated, created)
	}
}

func (s *Server) UpdateResourceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := resourceKind(w, r)
		if !ok {
			return
		}
		update, ok := decodeItem(w, r)
		if !ok {
			return
		}
		id := mux.Vars(r)["id"]

		s.resourceMu.Lock()
		existing, idx := s.findResource(kind, id)
		if existing == nil {
			s.resourceMu.Unlock()
			writeJSONError(w, http.StatusNotFound, "not_found", "Resource not found")
			return
		}
		update["id"] = id
		update["createdAt"] = existing["createdAt"]
		update["updatedAt"] = time.Now().UTC().Format(time.RFC3339)
		s.resources[kind][idx] = update
		updated := copyItem(update)
		s.resourceMu.Unlock()

		writeJSON(w, http.StatusOK, updated)
	}
}

func (s *Server) DeleteResourceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := resourceKind(w, r)
		if !ok {
			return
		}

		s.resourceMu.Lock()
		existing, idx := s.findResource(kind, mux.Vars(r)["id"])
		if existing != nil {
			items := s.resources[kind]
			s.resources[kind] = append(items[:idx:idx], items[idx+1:]...)
		}
		s.resourceMu.Unlock()

		if existing == nil {
			writeJSONError(w, http.StatusNotFound, "not_found", "Resource not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// findResource must be called with resourceMu held.
func (s *Server) findResource(kind, id string) (map[string]any, int) {
	for i, item := range s.resources[kind] {
		if item["id"] == id {
			return item, i
		}
	}
	return nil, -1
}

func resourceKind(w http.ResponseWriter, r *http.Request) (string, bool) {
	kind := mux.Vars(r)["kind"]
	if !kindPattern.MatchString(kind) {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Unknown resource kind")
		return "", false
	}
	return kind, true
}

func decodeItem(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var item map[string]any
	if err := decodeJSON(w, r, &item); err != nil || item == nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body must be a JSON object")
		return nil, false
	}
	name, _ := item["name"].(string)
	if strings.TrimSpace(name) == "" {
		writeJSONError(w, http.StatusUnprocessableEntity, "validation_failed", "name is required")
		return nil, false
	}
	return item, true
}

func copyItem(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
