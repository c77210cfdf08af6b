package inference

import (
	"context"
	"log"
	"net/http"
	"time"

	"inference-gateway/inference/application"
	"inference-gateway/inference/domain"
)

// PoolStatusReader é o que o health check precisa do pool.
type PoolStatusReader interface {
	Status(ctx context.Context) (application.PoolStatus, error)
}

// HealthHandler responde GET /healthz.
//
//   - ok: store responde e há credencial disponível
//   - degraded: store responde, todas as utilizáveis em cooldown (200, fallback ativo)
//   - down: store fora ou todas as credenciais falharam permanentemente (503)
type HealthHandler struct {
	Store   domain.KVStore
	Pool    PoolStatusReader
	Timeout time.Duration
}

type healthCredentials struct {
	Total             int `json:"total"`
	Available         int `json:"available"`
	CoolingDown       int `json:"coolingDown"`
	PermanentlyFailed int `json:"permanentlyFailed"`
}

type healthBody struct {
	Status      string             `json:"status"`
	Store       string             `json:"store"`
	Credentials *healthCredentials `json:"credentials,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	body := healthBody{Status: "ok", Store: "ok"}
	if h.Store != nil {
		if err := h.Store.Ping(ctx); err != nil {
			log.Printf("[Health] store ping failed: %v", err)
			body.Status = "down"
			body.Store = "error"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}

	if h.Pool != nil {
		st, err := h.Pool.Status(ctx)
		if err != nil {
			log.Printf("[Health] pool state unreadable: %v", err)
			body.Status = "down"
			body.Store = "error"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body.Credentials = &healthCredentials{
			Total:             st.Total,
			Available:         st.Available,
			CoolingDown:       st.CoolingDown,
			PermanentlyFailed: st.PermanentlyDown,
		}
		switch {
		case st.Available > 0:
		case st.CoolingDown > 0:
			body.Status = "degraded"
		default:
			body.Status = "down"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}

	writeJSON(w, http.StatusOK, body)
}
