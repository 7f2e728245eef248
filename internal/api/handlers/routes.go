package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/statement-import/internal/api/middleware"
)

// Register adds every API route to mux.
func Register(mux *http.ServeMux, imports *ImportsHandler, jobsH *JobsHandler, accounts *AccountsHandler) {
	mux.HandleFunc("POST /api/imports", imports.Create)
	mux.HandleFunc("POST /api/imports/gcs", imports.EnqueueGCS)
	mux.HandleFunc("GET /api/imports/{id}", func(w http.ResponseWriter, r *http.Request) {
		imports.Get(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/imports/{id}/undo", func(w http.ResponseWriter, r *http.Request) {
		imports.Undo(w, r, r.PathValue("id"))
	})

	mux.HandleFunc("GET /api/jobs", jobsH.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		jobsH.GetJob(w, r, r.PathValue("id"))
	})

	mux.HandleFunc("GET /api/accounts", accounts.ListAccounts)
	mux.HandleFunc("POST /api/accounts", accounts.CreateAccount)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
}
