package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/AndreasM009/entitystore-go/store"
)

const maxBodyBytes = 1 << 20

type resource[T any, P store.EntityPtr[T]] struct {
	name string
	repo *store.Repository[T, P]
}

// NewResource exposes repo under /api/{name}
func NewResource[T any, P store.EntityPtr[T]](name string, repo *store.Repository[T, P]) Resource {
	return &resource[T, P]{name: name, repo: repo}
}

func (h *resource[T, P]) Name() string {
	return h.name
}

func (h *resource[T, P]) Routes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
	r.Get("/{id}/exists", h.handleExists)
}

func (h *resource[T, P]) handleCreate(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.decode(w, r)
	if !ok {
		return
	}
	if entity.GetID() != 0 {
		writeJSON(w, http.StatusBadRequest, NewErrorResponse("id must not be set on create, use PUT"))
		return
	}

	saved, err := h.repo.Save(r.Context(), entity)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, NewDataResponse(saved))
}

func (h *resource[T, P]) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("offset") && !q.Has("limit") {
		all, err := h.repo.FindAll(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, NewDataResponse(all))
		return
	}

	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, NewErrorResponse("invalid offset"))
		return
	}
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, NewErrorResponse("invalid limit"))
		return
	}

	page, err := h.repo.FindPage(r.Context(), store.NewPage(offset, limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewDataResponse(page))
}

func (h *resource[T, P]) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	entity, found, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, NewErrorResponse(h.name+" not found"))
		return
	}

	writeJSON(w, http.StatusOK, NewDataResponse(entity))
}

func (h *resource[T, P]) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entity, ok := h.decode(w, r)
	if !ok {
		return
	}
	if entity.GetID() != 0 && entity.GetID() != id {
		writeJSON(w, http.StatusBadRequest, NewErrorResponse("id in body does not match path"))
		return
	}
	entity.SetID(id)

	saved, err := h.repo.Save(r.Context(), entity)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NewDataResponse(saved))
}

func (h *resource[T, P]) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.repo.DeleteByID(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (h *resource[T, P]) handleExists(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	exists, err := h.repo.ExistsByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NewDataResponse(ExistsResult{Exists: exists}))
}

func (h *resource[T, P]) decode(w http.ResponseWriter, r *http.Request) (P, bool) {
	var v T
	entity := P(&v)

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(entity); err != nil {
		writeJSON(w, http.StatusBadRequest, NewErrorResponse("invalid body: "+err.Error()))
		return nil, false
	}
	return entity, true
}

// pathID leaves range checks to the repository
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, NewErrorResponse("invalid id"))
		return 0, false
	}
	return id, true
}

func queryInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
