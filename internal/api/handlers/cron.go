package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maxdesanta/ac02-be-cron-job/internal/core"
	"github.com/maxdesanta/ac02-be-cron-job/internal/scheduler"
	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// BatchRunner triggers one prediction batch tick. skipped=true means a
// previous tick was still in flight and nothing ran.
type BatchRunner interface {
	Run(ctx context.Context) (results scheduler.Results, skipped bool)
}

// CronHandler exposes the externally-scheduled batch trigger. The endpoint
// is protected by a shared bearer secret rather than user auth, matching
// how hosted cron services authenticate themselves.
type CronHandler struct {
	batch  BatchRunner
	secret types.SecretString
	logger *slog.Logger
}

// NewCronHandler creates a CronHandler.
func NewCronHandler(batch BatchRunner, secret types.SecretString, logger *slog.Logger) *CronHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronHandler{batch: batch, secret: secret, logger: logger}
}

// RegisterRoutes mounts the cron trigger on the v1 group.
func (h *CronHandler) RegisterRoutes(r chi.Router) {
	r.Post("/cron/predict", h.HandlePredict)
}

// HandlePredict serves POST /v1/cron/predict. The Authorization header must
// carry "Bearer <secret>"; anything else is rejected with 401 before any
// processing happens. The batch runs synchronously so the caller sees the
// tick's counts, and a tick skipped due to overlap reports skipped=true.
func (h *CronHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r); err != nil {
		h.logger.WarnContext(r.Context(), "unauthorized cron trigger blocked",
			"remote_addr", r.RemoteAddr,
		)
		core.Error(w, r, err)
		return
	}

	results, skipped := h.batch.Run(r.Context())

	core.OK(w, r, "prediction batch triggered", struct {
		Skipped bool              `json:"skipped"`
		Results scheduler.Results `json:"results"`
	}{
		Skipped: skipped,
		Results: results,
	})
}

// authorize validates the bearer secret in constant time.
func (h *CronHandler) authorize(r *http.Request) error {
	header := r.Header.Get("Authorization")
	if header == "" {
		return types.NewAppError(types.ErrCodeAuthTokenMissing, "authorization header required", nil)
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "unauthorized", nil)
	}

	secret := h.secret.Unmask()
	if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "unauthorized", nil)
	}
	return nil
}
