package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes registers the API routes. metrics may be nil.
func SetupRoutes(router *mux.Router, handlers *Handlers, metrics *Metrics) {
	api := router.PathPrefix("/api/v1").Subrouter()

	classifications := api.PathPrefix("/classifications").Subrouter()
	classifications.HandleFunc("", handlers.CreateClassification).Methods("POST")
	classifications.HandleFunc("", handlers.ListClassifications).Methods("GET")
	classifications.HandleFunc("/{jobId}", handlers.GetClassification).Methods("GET")
	classifications.HandleFunc("/{jobId}", handlers.CancelClassification).Methods("DELETE")

	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	if metrics != nil {
		router.Handle("/metrics", metrics.Handler()).Methods("GET")
	}
}

// NewRouter creates a router with all routes and the middleware stack
func NewRouter(handlers *Handlers, metrics *Metrics) *mux.Router {
	router := mux.NewRouter()
	SetupRoutes(router, handlers, metrics)

	router.Use(LoggingMiddleware)
	router.Use(RecoveryMiddleware)
	return router
}
