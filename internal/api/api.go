package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/oauth2"

	"github.com/lumihe/slotbot/internal/config"
	"github.com/lumihe/slotbot/internal/db"
	"github.com/lumihe/slotbot/internal/slot"
)

type API struct {
	router      *mux.Router
	db          *db.DB
	svc         *slot.Service
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
}

func New(cfg *config.Config, database *db.DB, svc *slot.Service) *API {
	api := &API{
		router:    mux.NewRouter(),
		db:        database,
		svc:       svc,
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Public endpoints
	a.router.HandleFunc("/api/health", a.handleHealth).Methods("GET")

	// Protected endpoints: global admins only
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)
	protected.Use(a.adminOnlyMiddleware)

	protected.HandleFunc("/queue", a.handleQueueStatus).Methods("GET")
	protected.HandleFunc("/slots", a.handleListSlots).Methods("GET")
	protected.HandleFunc("/slots/reopen", a.handleReopenAll).Methods("POST")
	protected.HandleFunc("/queue/reset", a.handleResetQueue).Methods("POST")
	protected.HandleFunc("/forwarding", a.handleGetForwarding).Methods("GET")
	protected.HandleFunc("/forwarding", a.handleSetForwarding).Methods("PUT")
	protected.HandleFunc("/rooms/{room_id}/percentage", a.handleSetPercentage).Methods("PUT")
	protected.HandleFunc("/rooms/{room_id}/clickmode", a.handleSetClickMode).Methods("PUT")
}

func (a *API) Start() error {
	// Setup CORS - allow all origins for development, restrict in production
	// Note: When AllowedOrigins is "*", AllowCredentials must be false for security
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false, // Set to false for security when using wildcard origin
	}

	handler := cors.New(corsOptions).Handler(a.router)

	log.Printf("API server listening on http://%s", a.config.WebBind)
	return http.ListenAndServe(a.config.WebBind, handler)
}
