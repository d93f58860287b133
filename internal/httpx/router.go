// Package httpx wires the deployment API endpoints to the orchestrator
// and credential store.
package httpx

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IamSamk/Portfolify/internal/domain"
	"github.com/IamSamk/Portfolify/internal/orchestrator"
	"github.com/IamSamk/Portfolify/internal/store"
	"github.com/IamSamk/Portfolify/internal/ws"
	"github.com/IamSamk/Portfolify/pkg/config"
)

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitDeploy    = 10
	rateLimitRead      = 120
	rateLimitLogin     = 5
	rateLimitAdmin     = 60
	rateLimitWebsocket = 30
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	deploy   orchestrator.Service
	accounts *store.Store
	hub      *ws.Hub
	upgrader websocket.Upgrader
	limiter  RateLimiter

	jwtSecret         string
	adminPassword     string
	adminPasswordHash string
	adminTokenTTL     time.Duration
	defaultMaxDeploys int

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, deploySvc orchestrator.Service, accountStore *store.Store, hub *ws.Hub, limiter RateLimiter, cfg config.APIConfig) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		deploy:   deploySvc,
		accounts: accountStore,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:           limiter,
		jwtSecret:         cfg.JWTSecret,
		adminPassword:     cfg.AdminPassword,
		adminPasswordHash: cfg.AdminPasswordHash,
		adminTokenTTL:     cfg.AdminTokenTTL,
		defaultMaxDeploys: cfg.DefaultMaxDeploys,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/api/deploy", r.audit(r.withRateLimit(rateLimitDeploy, rateWindowDefault, rateLimitKeyIP, r.handleDeploy)))
	r.mux.HandleFunc("/api/accounts", r.audit(r.withRateLimit(rateLimitRead, rateWindowDefault, rateLimitKeyIP, r.handleAccounts)))
	r.mux.HandleFunc("/api/admin/login", r.audit(r.withRateLimit(rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleAdminLogin)))
	r.mux.HandleFunc("/api/admin/accounts", r.audit(r.withRateLimit(rateLimitAdmin, rateWindowDefault, rateLimitKeyIP, r.requireAdmin(r.handleAdminAccounts))))
	r.mux.HandleFunc("/api/admin/accounts/", r.audit(r.withRateLimit(rateLimitAdmin, rateWindowDefault, rateLimitKeyIP, r.requireAdmin(r.handleAdminAccountByID))))
	r.mux.HandleFunc("/api/admin/reset", r.audit(r.withRateLimit(rateLimitAdmin, rateWindowDefault, rateLimitKeyIP, r.requireAdmin(r.handleAdminReset))))
	r.mux.HandleFunc("/ws/deployments", r.audit(r.withRateLimit(rateLimitWebsocket, rateWindowRealtime, rateLimitKeyIP, r.handleDeploymentsWS)))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"accounts": len(r.accounts.Snapshot()),
	})
}

func (r *Router) handleDeploy(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		ProjectName string `json:"projectName"`
		HTML        string `json:"html"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := r.deploy.Deploy(req.Context(), domain.NewArtifact(payload.ProjectName, payload.HTML))
	switch result.Code {
	case orchestrator.CodeSucceeded:
		response := map[string]any{
			"success":      true,
			"url":          result.URL,
			"deploymentId": result.RemoteID,
			"accountUsed":  result.AccountUsed,
			"accountUsage": result.AccountUsage,
			"message":      result.Message,
		}
		if result.PersistWarning != "" {
			response["warning"] = "usage counter not persisted: " + result.PersistWarning
		}
		writeJSON(w, http.StatusOK, response)
	case orchestrator.CodeInvalidArtifact:
		writeError(w, http.StatusBadRequest, result.Message)
	case orchestrator.CodeNoAccounts:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success":    false,
			"error":      result.Message,
			"suggestion": "add tokens or reset usage in the admin panel",
		})
	default:
		// Exhausted: hand the artifact back so the caller can fall back
		// to a manual download instead of being blocked entirely.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success":     false,
			"error":       result.Message,
			"failures":    result.Failures,
			"projectName": domain.Slugify(payload.ProjectName),
			"html":        payload.HTML,
			"suggestion":  "download the file and publish it manually, or try again after a quota reset",
		})
	}
}

// accountView is the public projection of an account; the credential is
// always masked.
type accountView struct {
	ID              string `json:"id"`
	Credential      string `json:"maskedCredential"`
	DeploymentsUsed int    `json:"deploymentsUsed"`
	MaxDeployments  int    `json:"maxDeployments"`
	Active          bool   `json:"active"`
	Usage           string `json:"usage"`
	Percentage      int    `json:"percentage"`
}

func (r *Router) handleAccounts(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	snapshot := r.accounts.Snapshot()
	views := make([]accountView, 0, len(snapshot))
	totalUsed, totalCapacity, activeCount := 0, 0, 0
	for _, account := range snapshot {
		views = append(views, newAccountView(account))
		totalUsed += account.DeploymentsUsed
		totalCapacity += account.MaxDeployments
		if account.Active && account.HasCredential() {
			activeCount++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": views,
		"summary": map[string]any{
			"totalDeployments":  totalUsed,
			"totalCapacity":     totalCapacity,
			"activeAccounts":    activeCount,
			"overallUsage":      usagePair(totalUsed, totalCapacity),
			"overallPercentage": percentage(totalUsed, totalCapacity),
		},
	})
}

func (r *Router) handleDeploymentsWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(orchestrator.Topic, client)
	defer r.hub.Unregister(orchestrator.Topic, client)

	// Consume control frames until the peer goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func newAccountView(account domain.Account) accountView {
	return accountView{
		ID:              account.ID,
		Credential:      account.MaskedCredential(),
		DeploymentsUsed: account.DeploymentsUsed,
		MaxDeployments:  account.MaxDeployments,
		Active:          account.Active && account.HasCredential(),
		Usage:           account.Usage(),
		Percentage:      percentage(account.DeploymentsUsed, account.MaxDeployments),
	}
}

func usagePair(used, capacity int) string {
	return domain.Account{DeploymentsUsed: used, MaxDeployments: capacity}.Usage()
}

func percentage(used, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return int(float64(used) / float64(capacity) * 100)
}
