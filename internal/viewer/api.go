package viewer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// API exposes the tab manager over HTTP for presentation surfaces.
type API struct {
	manager *Manager
	config  *APIConfig
}

// APIConfig configures the viewer API.
type APIConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	BasePath   string `json:"base_path"`
	EnableCORS bool   `json:"enable_cors"`
}

// NewAPI creates a viewer API over the given manager.
func NewAPI(manager *Manager, config *APIConfig) *API {
	if config == nil {
		config = &APIConfig{
			Host:       "localhost",
			Port:       8081,
			BasePath:   "/viewer/v1",
			EnableCORS: true,
		}
	}
	return &API{manager: manager, config: config}
}

// Start starts the viewer API server.
func (api *API) Start() error {
	handler := api.Handler()
	addr := fmt.Sprintf("%s:%d", api.config.Host, api.config.Port)
	log.Info().Str("address", addr).Msg("Starting viewer API")
	return http.ListenAndServe(addr, handler)
}

// Handler builds the routed handler with middleware applied.
func (api *API) Handler() http.Handler {
	router := api.setupRoutes()

	var handler http.Handler = router
	if api.config.EnableCORS {
		handler = api.corsMiddleware(handler)
	}
	handler = api.loggingMiddleware(handler)
	return handler
}

func (api *API) setupRoutes() *mux.Router {
	router := mux.NewRouter()
	base := router.PathPrefix(api.config.BasePath).Subrouter()

	base.HandleFunc("/documents", api.listDocuments).Methods("GET")
	base.HandleFunc("/documents/{id}", api.getDocument).Methods("GET")
	base.HandleFunc("/documents/{id}", api.closeDocument).Methods("DELETE")
	base.HandleFunc("/documents/{id}/open", api.openDocument).Methods("POST")
	base.HandleFunc("/documents/{id}/activate", api.activateDocument).Methods("POST")
	base.HandleFunc("/documents/{id}/retry", api.retryDocument).Methods("POST")
	base.HandleFunc("/documents/{id}/page", api.goToPage).Methods("POST")
	base.HandleFunc("/documents/{id}/page/next", api.nextPage).Methods("POST")
	base.HandleFunc("/documents/{id}/page/prev", api.prevPage).Methods("POST")
	base.HandleFunc("/documents/{id}/zoom", api.setZoom).Methods("POST")
	base.HandleFunc("/documents/{id}/zoom/in", api.zoomIn).Methods("POST")
	base.HandleFunc("/documents/{id}/zoom/out", api.zoomOut).Methods("POST")
	base.HandleFunc("/documents/{id}/zoom/fit", api.fitToWidth).Methods("POST")
	base.HandleFunc("/documents/{id}/render", api.renderPage).Methods("GET")

	return router
}

// Handler implementations

func (api *API) listDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": api.manager.List(),
	})
}

func (api *API) getDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, ok := api.manager.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no open document %q", id))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (api *API) openDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Page        int    `json:"page"`
		DisplayName string `json:"display_name"`
	}
	if r.Body != nil {
		// Missing or empty bodies open at page 1 with a blank name.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	snap, err := api.manager.Open(r.Context(), id, body.Page, body.DisplayName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (api *API) closeDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := api.manager.Close(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (api *API) activateDocument(w http.ResponseWriter, r *http.Request) {
	snap, err := api.manager.Activate(mux.Vars(r)["id"])
	api.respondUpdate(w, snap, err)
}

func (api *API) retryDocument(w http.ResponseWriter, r *http.Request) {
	snap, err := api.manager.Retry(r.Context(), mux.Vars(r)["id"])
	api.respondUpdate(w, snap, err)
}

func (api *API) goToPage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Page int `json:"page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid page payload")
		return
	}
	snap, err := api.manager.GoToPage(mux.Vars(r)["id"], body.Page)
	api.respondUpdate(w, snap, err)
}

func (api *API) nextPage(w http.ResponseWriter, r *http.Request) {
	snap, err := api.manager.NextPage(mux.Vars(r)["id"])
	api.respondUpdate(w, snap, err)
}

func (api *API) prevPage(w http.ResponseWriter, r *http.Request) {
	snap, err := api.manager.PrevPage(mux.Vars(r)["id"])
	api.respondUpdate(w, snap, err)
}

func (api *API) setZoom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scale float64 `json:"scale"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid zoom payload")
		return
	}
	snap, err := api.manager.SetZoom(mux.Vars(r)["id"], body.Scale)
	api.respondUpdate(w, snap, err)
}

func (api *API) zoomIn(w http.ResponseWriter, r *http.Request) {
	snap, err := api.manager.ZoomIn(mux.Vars(r)["id"])
	api.respondUpdate(w, snap, err)
}

func (api *API) zoomOut(w http.ResponseWriter, r *http.Request) {
	snap, err := api.manager.ZoomOut(mux.Vars(r)["id"])
	api.respondUpdate(w, snap, err)
}

func (api *API) fitToWidth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ContainerWidth float64 `json:"container_width"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid fit payload")
		return
	}
	snap, err := api.manager.FitToWidth(mux.Vars(r)["id"], body.ContainerWidth)
	api.respondUpdate(w, snap, err)
}

func (api *API) renderPage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	bitmap, err := api.manager.RenderPage(id)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(bitmap)
}

func (api *API) respondUpdate(w http.ResponseWriter, snap Snapshot, err error) {
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Middleware

func (api *API) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (api *API) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Viewer API request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
