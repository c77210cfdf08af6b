package inference

import (
	"net/http"
	"time"

	"inference-gateway/inference/application"
	"inference-gateway/inference/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
}

// Concurrency limita o número de requisições em andamento no processo.
// Max <= 0 desativa o limite.
func Concurrency(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	adm := application.Admission{
		Slots:          infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := adm.Acquire(r.Context())
			if !ok {
				writeJSON(w, opts.RejectStatus, errorBody{
					Error:     http.StatusText(opts.RejectStatus),
					RequestID: RequestIDFrom(r.Context()),
				})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
