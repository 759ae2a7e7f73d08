package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"agrichain_go/events"
	"agrichain_go/ledger"
	"agrichain_go/supply"
	"agrichain_go/utils"
)

// Server is the HTTP surface of the node.
type Server struct {
	Router  *mux.Router
	Service *supply.Service
	Chain   *ledger.Writer
	Hub     *events.Hub

	httpServer *http.Server
}

// NewServer creates a new server instance.
func NewServer(service *supply.Service, chain *ledger.Writer, hub *events.Hub) *Server {
	return &Server{
		Router:  mux.NewRouter(),
		Service: service,
		Chain:   chain,
		Hub:     hub,
	}
}

// SetupRoutes configures the API routes.
func (s *Server) SetupRoutes() {
	s.Router.Use(corsMiddleware)

	// Preflight requests never match a method-restricted route; this
	// catch-all lets corsMiddleware answer them.
	s.Router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	// Health check route
	s.Router.HandleFunc("/", s.HealthHandler).Methods("GET")

	// User endpoints
	users := s.Router.PathPrefix("/api/users").Subrouter()
	users.HandleFunc("/register", s.RegisterUserHandler).Methods("POST")
	users.HandleFunc("", s.GetUsersHandler).Methods("GET")
	users.HandleFunc("/role/{role}", s.GetUsersByRoleHandler).Methods("GET")
	users.HandleFunc("/wallet/{walletAddress}", s.GetUserByWalletHandler).Methods("GET")

	// Product endpoints
	products := s.Router.PathPrefix("/api/products").Subrouter()
	products.HandleFunc("/register", s.RegisterProductHandler).Methods("POST")
	products.HandleFunc("", s.GetProductsHandler).Methods("GET")
	products.HandleFunc("/owner/{ownerId}", s.GetProductsByOwnerHandler).Methods("GET")
	products.HandleFunc("/{productId}", s.GetProductHandler).Methods("GET")
	products.Handle("/{productId}/status",
		RequireIdentity(http.HandlerFunc(s.UpdateProductStatusHandler))).Methods("PUT")

	// Transfer request endpoints; all require an authenticated identity
	requests := s.Router.PathPrefix("/api/requests").Subrouter()
	requests.Use(RequireIdentity)
	requests.HandleFunc("", s.CreateRequestHandler).Methods("POST")
	requests.HandleFunc("", s.GetRequestsHandler).Methods("GET")
	requests.HandleFunc("/{requestId}/accept", s.AcceptRequestHandler).Methods("PUT")
	requests.HandleFunc("/{requestId}/reject", s.RejectRequestHandler).Methods("PUT")

	// Ledger inspection endpoints
	chain := s.Router.PathPrefix("/api/blockchain").Subrouter()
	chain.HandleFunc("/overview", s.OverviewHandler).Methods("GET")
	chain.HandleFunc("/blocks", s.GetBlocksHandler).Methods("GET")
	chain.HandleFunc("/blocks/{blockNumber}", s.GetBlockHandler).Methods("GET")
	chain.HandleFunc("/verify", s.VerifyChainHandler).Methods("GET")

	// Live block feed
	if s.Hub != nil {
		s.Router.HandleFunc("/ws", s.Hub.ServeWS)
	}
}

// HealthHandler answers with service metadata.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	respondMessage(w, http.StatusOK, "Agricultural Blockchain Supply Chain API", map[string]interface{}{
		"version": "1.0.0",
		"endpoints": map[string]string{
			"users":      "/api/users",
			"products":   "/api/products",
			"requests":   "/api/requests",
			"blockchain": "/api/blockchain",
		},
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+identityHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	utils.LogInfo("Server starting on port %d", port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
