// Package serverapp assembles the HTTP application: config, store, the
// dispatch service, and the route table.
package serverapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sottey/dispatchtoo/internal/config"
	"github.com/sottey/dispatchtoo/internal/dispatch"
	"github.com/sottey/dispatchtoo/internal/httpmw"
	"github.com/sottey/dispatchtoo/internal/store"
)

type Options struct {
	Config *config.Config
	Logger *log.Logger
}

func NewHandler(opts Options) (http.Handler, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	st, err := openStore(opts.Config)
	if err != nil {
		return nil, err
	}

	svc := dispatch.NewService(st, opts.Logger)
	svc.SetTemplateNoteTitle(opts.Config.Dispatch.TemplateNoteTitle)
	dispatchHandler := dispatch.NewHandler(svc)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "dispatchtoo",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/api/dispatches", dispatchHandler.DispatchesRoot)
	mux.HandleFunc("/api/dispatches/", dispatchHandler.DispatchesSub)
	mux.HandleFunc("/api/template/preview", dispatchHandler.TemplatePreview)

	return httpmw.Chain(
		mux,
		httpmw.WithAccessLog(opts.Logger),
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
	), nil
}

func openStore(cfg *config.Config) (dispatch.Storage, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
