package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// newStatusRouter serves the latest readouts, a health check and Prometheus metrics
func newStatusRouter(registry *ReadoutRegistry, metrics *Metrics) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/readouts", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, registry.All())
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/readouts/{key}", func(w http.ResponseWriter, req *http.Request) {
		key := mux.Vars(req)["key"]
		v, ok := registry.Get(key)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown readout " + key})
			return
		}
		writeJSON(w, http.StatusOK, v)
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Failed to write response: %v", err)
	}
}

// statusServerWorker runs the HTTP server until the context is cancelled
func statusServerWorker(ctx context.Context, listen string, handler http.Handler) {
	srv := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()
	log.Infof("Status server listening on %s", listen)

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Panicf("Status server failed: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Status server shutdown: %v", err)
		}
		log.Info("Status server stopped")
	}
}
