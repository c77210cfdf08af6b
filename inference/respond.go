package inference

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"inference-gateway/inference/domain"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Dispatcher] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	writeJSON(w, status, errorBody{Error: msg, RequestID: RequestIDFrom(r.Context())})
}

// statusFor traduz a taxonomia de erros do domínio para HTTP.
func statusFor(err error) (int, string) {
	var ve *domain.ValidationError
	var ue *domain.UpstreamError
	var te *domain.TimeoutError

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, domain.ErrRouteNotFound):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &te):
		return http.StatusInternalServerError, "upstream timed out"
	case errors.As(err, &ue):
		return http.StatusInternalServerError, ue.Error()
	case errors.Is(err, domain.ErrNoCredential), errors.Is(err, domain.ErrEmptyResult):
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, context.Canceled):
		// o chamador já foi embora; o status é só para o log
		return 499, "request canceled"
	default:
		// detalhes de infra (endereços, chaves do store) ficam só no log
		return http.StatusInternalServerError, "internal error"
	}
}

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}
