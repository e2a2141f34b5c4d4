package keybind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/vind/transfer"
)

// maxImportBytes bounds the body of POST /import.
const maxImportBytes = 8 << 20

// RegisterHTTP mounts the admin API on r.
func (k *Keeper) RegisterHTTP(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		st, err := k.Stats(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, st)
	})

	r.Route("/bindings", func(r chi.Router) {
		r.Get("/", k.handleListBindings)
		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			if err := k.DeleteAll(r.Context()); err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "deleted"})
		})
		r.Post("/move", k.handleMoveBindings)
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			b, err := k.GetBinding(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if b == nil {
				writeError(w, 404, errors.New("binding not found"))
				return
			}
			writeJSON(w, 200, b)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			ok, err := k.RemoveBinding(r.Context(), id)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if !ok {
				writeError(w, 404, errors.New("binding not found"))
				return
			}
			writeJSON(w, 200, map[string]string{"status": "deleted", "id": id})
		})
		r.Put("/{id}/key", k.handleChangeKey)
	})

	r.Route("/disabled-paths", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			var (
				list []string
				err  error
			)
			if domain := q.Get("domain"); domain != "" {
				list, err = k.DisabledPaths(r.Context(), domain, q.Get("path"))
			} else {
				list, err = k.ListDisabledPaths(r.Context())
			}
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if list == nil {
				list = []string{}
			}
			writeJSON(w, 200, list)
		})
		r.Post("/toggle", func(w http.ResponseWriter, r *http.Request) {
			var req togglePathRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			if req.Domain == "" {
				writeError(w, 400, errors.New("domain is required"))
				return
			}
			disabled, err := k.TogglePath(r.Context(), req.Domain, req.Path)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]bool{"disabled": disabled})
		})
	})

	r.Get("/export", func(w http.ResponseWriter, r *http.Request) {
		data, err := k.Export(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="vind-bindings.json"`)
		w.WriteHeader(200)
		w.Write(data)
	})

	r.Post("/import", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
		if err != nil {
			writeError(w, 400, err)
			return
		}
		res, err := k.Import(r.Context(), data)
		if err != nil {
			writeError(w, importStatus(err), err)
			return
		}
		writeJSON(w, 200, res)
	})
}

func (k *Keeper) handleListBindings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	domain, site := q.Get("domain"), q.Get("site")

	var (
		list any
		err  error
	)
	switch {
	case domain != "" && q.Has("site"):
		list, err = k.ActiveBindings(r.Context(), domain, site)
	case domain != "":
		list, err = k.BindingsForDomain(r.Context(), domain)
	default:
		list, err = k.ListBindings(r.Context())
	}
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, list)
}

func (k *Keeper) handleChangeKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if req.Key == "" {
		writeError(w, 400, errors.New("key is required"))
		return
	}
	ok, err := k.ChangeKey(r.Context(), id, req.Key)
	if err != nil {
		writeError(w, 409, err)
		return
	}
	if !ok {
		writeError(w, 404, fmt.Errorf("binding %s not found", id))
		return
	}
	b, err := k.GetBinding(r.Context(), id)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, b)
}

func (k *Keeper) handleMoveBindings(w http.ResponseWriter, r *http.Request) {
	var req moveBindingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if req.Domain == "" {
		writeError(w, 400, errors.New("domain is required"))
		return
	}
	n, err := k.MoveBindings(r.Context(), req.Domain, req.From, req.To)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]int64{"moved": n})
}

func importStatus(err error) int {
	var ipe *transfer.InvalidPayloadError
	var ve *transfer.VersionError
	switch {
	case errors.As(err, &ve):
		return 409
	case errors.As(err, &ipe):
		return 400
	}
	return 500
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
