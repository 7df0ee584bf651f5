// Package httpapi exposes the application services over a versioned REST
// API.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	app "github.com/cobx-network/player_layer/internal/app"
	"github.com/cobx-network/player_layer/internal/app/domain/profile"
	"github.com/cobx-network/player_layer/internal/app/domain/provision"
	"github.com/cobx-network/player_layer/internal/app/metrics"
	"github.com/cobx-network/player_layer/internal/app/services/identity"
	"github.com/cobx-network/player_layer/internal/app/services/provisioning"
	"github.com/cobx-network/player_layer/internal/app/storage"
	"github.com/cobx-network/player_layer/internal/chain"
	"github.com/cobx-network/player_layer/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app        *app.Application
	adminToken string
	log        *logger.Logger
}

// NewHandler returns the router exposing the REST API. adminToken guards the
// /v1/admin subtree; an empty token disables those routes.
func NewHandler(application *app.Application, adminToken string, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, adminToken: adminToken, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.readyz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(newRateLimiter(defaultRequestsPerSecond, defaultBurst, log).Handler)
	v1.HandleFunc("/register", h.register).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/web2", h.authed(h.provisionWeb2)).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/web3", h.authed(h.provisionWeb3)).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/web3/prepare", h.prepareWeb3).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/web3/complete", h.authed(h.completeWeb3)).Methods(http.MethodPost)
	v1.HandleFunc("/wallet", h.authed(h.linkWallet)).Methods(http.MethodPost)
	v1.HandleFunc("/intents", h.authed(h.listIntents)).Methods(http.MethodGet)
	v1.HandleFunc("/profile", h.authed(h.getProfile)).Methods(http.MethodGet)
	v1.HandleFunc("/progression", h.authed(h.getProgression)).Methods(http.MethodGet)
	v1.HandleFunc("/progression/experience", h.authed(h.addExperience)).Methods(http.MethodPost)

	admin := v1.PathPrefix("/admin").Subrouter()
	admin.Use(h.requireAdmin)
	admin.HandleFunc("/config", h.ensureConfig).Methods(http.MethodPost)
	admin.HandleFunc("/config", h.configStatus).Methods(http.MethodGet)

	return metrics.InstrumentHandler(r)
}

// authed resolves the bearer credential to a profile before invoking next.
func (h *handler) authed(next func(http.ResponseWriter, *http.Request, profile.Profile)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := h.app.Identity.Resolve(r.Context(), bearerToken(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next(w, r, p)
	}
}

func (h *handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if h.adminToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			h.writeError(w, r, identity.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	userID, err := h.app.Identity.VerifyCredential(bearerToken(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.app.Identity.Register(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profileResponse(p))
}

type provisionPayload struct {
	Name  string `json:"name"`
	Class *int   `json:"class"`
}

func (h *handler) provisionWeb2(w http.ResponseWriter, r *http.Request, p profile.Profile) {
	h.provision(w, r, p, provision.ModeWeb2)
}

func (h *handler) provisionWeb3(w http.ResponseWriter, r *http.Request, p profile.Profile) {
	h.provision(w, r, p, provision.ModeWeb3)
}

func (h *handler) provision(w http.ResponseWriter, r *http.Request, p profile.Profile, mode provision.Mode) {
	var payload provisionPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	result, err := h.app.Provisioning.Provision(r.Context(), p, provisioning.Request{
		Name:  payload.Name,
		Class: payload.Class,
	}, mode)
	if err != nil {
		metrics.RecordProvisionOutcome(string(mode), "error", time.Since(start))
		h.writeError(w, r, err)
		return
	}

	outcome := "created"
	if result.Recovered {
		outcome = "recovered"
	}
	metrics.RecordProvisionOutcome(string(mode), outcome, time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) prepareWeb3(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Wallet string `json:"wallet"`
		provisionPayload
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	prepared, err := h.app.Provisioning.Prepare(r.Context(), chain.Address(payload.Wallet), provisioning.Request{
		Name:  payload.Name,
		Class: payload.Class,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prepared)
}

func (h *handler) completeWeb3(w http.ResponseWriter, r *http.Request, p profile.Profile) {
	var payload struct {
		TxRef string `json:"tx_ref"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.app.Provisioning.Complete(r.Context(), p, payload.TxRef)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) linkWallet(w http.ResponseWriter, r *http.Request, p profile.Profile) {
	var payload struct {
		Wallet string `json:"wallet"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Identity.LinkWallet(r.Context(), p.UserID, chain.Address(payload.Wallet))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(updated))
}

// intentView is the public projection of one provisioning attempt.
type intentView struct {
	PlayerAddress chain.Address         `json:"player_address"`
	TokenAddress  chain.Address         `json:"token_address"`
	State         provision.IntentState `json:"state"`
	TxRef         string                `json:"tx_ref,omitempty"`
	Detail        string                `json:"detail,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func (h *handler) listIntents(w http.ResponseWriter, r *http.Request, p profile.Profile) {
	intents, err := h.app.Provisioning.Intents(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]intentView, 0, len(intents))
	for _, it := range intents {
		views = append(views, intentView{
			PlayerAddress: it.PlayerAddress,
			TokenAddress:  it.TokenAddress,
			State:         it.State,
			TxRef:         it.TxRef,
			Detail:        it.Detail,
			CreatedAt:     it.CreatedAt,
			UpdatedAt:     it.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request, p profile.Profile) {
	writeJSON(w, http.StatusOK, profileResponse(p))
}

func (h *handler) getProgression(w http.ResponseWriter, r *http.Request, p profile.Profile) {
	snap, err := h.app.Progression.Get(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) addExperience(w http.ResponseWriter, r *http.Request, p profile.Profile) {
	var payload struct {
		Delta int64 `json:"delta"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, err := h.app.Progression.AddExperience(r.Context(), p.UserID, payload.Delta)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) ensureConfig(w http.ResponseWriter, r *http.Request) {
	status, err := h.app.Provisioning.EnsureConfig(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if status.AlreadyExists {
		code = http.StatusOK
	}
	writeJSON(w, code, status)
}

func (h *handler) configStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.app.Provisioning.ConfigStatus(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Health.Live())
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	ready, results := h.app.Health.Ready(r.Context())
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"ready": ready, "checks": results})
}

// profileView is the public projection of a profile row. The session private
// key never leaves the service.
type profileView struct {
	UserID                  string            `json:"user_id"`
	WalletAddress           chain.Address     `json:"wallet_address,omitempty"`
	PlayerAccountAddress    chain.Address     `json:"player_account_address,omitempty"`
	CobxTokenAccountAddress chain.Address     `json:"cobx_token_account_address,omitempty"`
	PDAStatus               profile.PDAStatus `json:"pda_status"`
	SessionIdentity         string            `json:"session_identity,omitempty"`
	Experience              int64             `json:"experience"`
	Level                   int               `json:"level"`
}

func profileResponse(p profile.Profile) profileView {
	return profileView{
		UserID:                  p.UserID,
		WalletAddress:           p.WalletAddress,
		PlayerAccountAddress:    p.PlayerAccountAddress,
		CobxTokenAccountAddress: p.CobxTokenAccountAddress,
		PDAStatus:               p.PDAStatus,
		SessionIdentity:         p.SessionIdentity,
		Experience:              p.Experience,
		Level:                   p.Level,
	}
}

// writeError maps domain errors onto HTTP statuses.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, identity.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, provision.ErrValidation),
		errors.Is(err, provision.ErrWalletNotLinked):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, provision.ErrAlreadyProvisioned),
		errors.Is(err, provision.ErrLedgerAccountExists),
		errors.Is(err, provision.ErrNotConfirmed),
		errors.Is(err, storage.ErrDuplicate):
		return http.StatusConflict
	default:
		// Funding, configuration and inconsistency faults are all
		// operator-facing server errors.
		return http.StatusInternalServerError
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
