package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	syncerr "github.com/vango-dev/storesync/internal/errors"
	"github.com/vango-dev/storesync/pkg/bridge"
	"github.com/vango-dev/storesync/pkg/storage"
)

// maxItemSize caps PUT bodies.
const maxItemSize = 1 << 20

// itemsAPI serves the storage areas over HTTP. Writes are broadcast
// through the hub as native notifications.
type itemsAPI struct {
	areas  map[storage.Scope]storage.Area
	hub    *bridge.Hub
	origin string
	logger *slog.Logger
}

func (api *itemsAPI) routes(r chi.Router) {
	r.Get("/items/{scope}", api.list)
	r.Get("/items/{scope}/{key}", api.get)
	r.Put("/items/{scope}/{key}", api.put)
	r.Delete("/items/{scope}/{key}", api.remove)
}

// target resolves the scope and key of the request. It writes the error
// response and reports false when either is invalid.
func (api *itemsAPI) target(w http.ResponseWriter, r *http.Request) (storage.Scope, storage.Area, string, bool) {
	scope, err := storage.ParseScope(chi.URLParam(r, "scope"))
	if err != nil {
		writeError(w, http.StatusNotFound, syncerr.Newf(syncerr.CategoryCLI, "%s", err.Error()))
		return 0, nil, "", false
	}
	area := api.areas[scope]
	if area == nil {
		writeError(w, http.StatusNotFound, syncerr.Newf(syncerr.CategoryCLI, "scope %s is not served", scope))
		return 0, nil, "", false
	}

	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, syncerr.Newf(syncerr.CategoryCLI, "invalid key: %v", err))
		return 0, nil, "", false
	}
	return scope, area, key, true
}

func (api *itemsAPI) list(w http.ResponseWriter, r *http.Request) {
	scope, err := storage.ParseScope(chi.URLParam(r, "scope"))
	area := api.areas[scope]
	if err != nil || area == nil {
		writeError(w, http.StatusNotFound, syncerr.Newf(syncerr.CategoryCLI, "unknown scope %q", chi.URLParam(r, "scope")))
		return
	}

	lister, ok := area.(storage.Lister)
	if !ok {
		writeError(w, http.StatusNotImplemented, syncerr.New("S222").WithScope(scope.String()))
		return
	}
	keys, err := lister.Keys(r.Context())
	if err != nil {
		api.storageError(w, "", scope, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(keys)
}

func (api *itemsAPI) get(w http.ResponseWriter, r *http.Request) {
	scope, area, key, ok := api.target(w, r)
	if !ok {
		return
	}

	value, found, err := area.GetItem(r.Context(), key)
	if err != nil {
		api.storageError(w, key, scope, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, syncerr.New("S221").WithKey(key).WithScope(scope.String()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, value)
}

func (api *itemsAPI) put(w http.ResponseWriter, r *http.Request) {
	scope, area, key, ok := api.target(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxItemSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, syncerr.Newf(syncerr.CategoryCLI, "read body: %v", err))
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, syncerr.New("S220").WithKey(key))
		return
	}
	value := string(body)

	ctx := storage.WithOrigin(r.Context(), api.origin)
	old, existed, err := area.GetItem(ctx, key)
	if err != nil {
		api.storageError(w, key, scope, err)
		return
	}
	if err := area.SetItem(ctx, key, value); err != nil {
		api.storageError(w, key, scope, err)
		return
	}

	m := bridge.Message{Scope: scope.String(), Key: key, NewValue: &value, Origin: api.origin}
	if existed {
		m.OldValue = &old
	}
	api.broadcast(m)
	w.WriteHeader(http.StatusNoContent)
}

func (api *itemsAPI) remove(w http.ResponseWriter, r *http.Request) {
	scope, area, key, ok := api.target(w, r)
	if !ok {
		return
	}

	ctx := storage.WithOrigin(r.Context(), api.origin)
	old, existed, err := area.GetItem(ctx, key)
	if err != nil {
		api.storageError(w, key, scope, err)
		return
	}
	if err := area.RemoveItem(ctx, key); err != nil {
		api.storageError(w, key, scope, err)
		return
	}

	if existed {
		api.broadcast(bridge.Message{Scope: scope.String(), Key: key, OldValue: &old, Origin: api.origin})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *itemsAPI) broadcast(m bridge.Message) {
	if err := api.hub.Broadcast(m); err != nil {
		api.logger.Warn("broadcast failed", "key", m.Key, "scope", m.Scope, "error", err)
	}
}

func (api *itemsAPI) storageError(w http.ResponseWriter, key string, scope storage.Scope, err error) {
	se := syncerr.New("S104").WithKey(key).WithScope(scope.String()).Wrap(err)
	api.logger.Error("storage request failed", "key", key, "scope", scope.String(), "error", err)
	writeError(w, http.StatusInternalServerError, se)
}

func writeError(w http.ResponseWriter, status int, se *syncerr.SyncError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, se.FormatJSON())
}
