package server

import (
	"crypto/tls"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/acme/autocert"

	"github.com/franckEinstein90/union-steward-api/handlers"
	"github.com/franckEinstein90/union-steward-api/services/rag_service"
)

type Config struct {
	Domains      []string
	CertCacheDir string
	HTTPPort     string
	HTTPSPort    string
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Dependencies carries everything the route handlers need.
type Dependencies struct {
	Ingestor        handlers.Ingestor
	QueryEngine     handlers.QueryEngine
	Embedder        rag_service.Embedder
	Store           handlers.DocumentStore
	VectorstoreRoot string
	Logger          *slog.Logger
}

func SetupRoutes(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	uploadHandler := handlers.NewUploadHandler(deps.Ingestor, deps.Embedder, deps.Store, deps.Logger)
	r.Handle("/documents/upload", uploadHandler).Methods("POST")

	searchHandler := handlers.NewSearchHandler(deps.Embedder, deps.Store, deps.Logger)
	r.Handle("/documents/search", searchHandler).Methods("POST")

	documentHandler := handlers.NewDocumentHandler(deps.Store, deps.VectorstoreRoot, deps.Logger)
	r.HandleFunc("/documents", documentHandler.List).Methods("GET")
	r.HandleFunc("/documents/{id:[0-9]+}", documentHandler.Delete).Methods("DELETE")
	r.HandleFunc("/agreements", documentHandler.ListAgreements).Methods("GET")

	queryHandler := handlers.NewQueryHandler(deps.QueryEngine, deps.Store, deps.Logger)
	r.Handle("/query_collective_bargaining_agreement", queryHandler).Methods("POST")

	collectionHandler := handlers.NewCollectionHandler(deps.Store, deps.Logger)
	r.HandleFunc("/collections", collectionHandler.Create).Methods("POST")
	r.HandleFunc("/collections", collectionHandler.List).Methods("GET")
	r.HandleFunc("/collections/{id:[0-9]+}", collectionHandler.Deactivate).Methods("DELETE")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}

// ServeProduction builds the server when we operate in a production environment.
func ServeProduction(n *negroni.Negroni, cfg Config) {
	autocertManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}

	// Listen for HTTP requests on port 80 in a new goroutine. Use
	// autocertManager.HTTPHandler(nil) as the handler. This will send ACME
	// "http-01" challenge responses as necessary, and 302 redirect all other
	// requests to HTTPS.
	go func() {
		srv := &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      autocertManager.HTTPHandler(nil),
			IdleTimeout:  time.Minute,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		err := srv.ListenAndServe()
		log.Fatal(err)
	}()

	tlsConfig := &tls.Config{
		GetCertificate:           autocertManager.GetCertificate,
		PreferServerCipherSuites: true,
		CurvePreferences:         []tls.CurveID{tls.X25519, tls.CurveP256},
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPSPort,
		Handler:      n,
		TLSConfig:    tlsConfig,
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Certificates come from the autocert cache.
	log.Fatal(srv.ListenAndServeTLS("", ""))
}

// ServeDevelopment builds a plain HTTP server for local work.
func ServeDevelopment(n *negroni.Negroni, cfg Config) {
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      n,
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	log.Fatal(srv.ListenAndServe())
}
