package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"codemate/executor"
	"codemate/internal"
	"codemate/metrics"
	"codemate/pkg"
	"codemate/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	StatusMessage string `json:"status_message"`
	Error         string `json:"error"`
	Success       bool   `json:"success"`
}

// NewRouter wires the API routes. The rate limiter guards /api only.
func NewRouter(svc *service.CodeService, limiter *pkg.RateLimiter, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	if limiter != nil {
		api.Use(limiter.Limit)
	}
	api.HandleFunc("/execute", handle(logger, svc.Execute)).Methods(http.MethodPost)
	api.HandleFunc("/validate", handle(logger, svc.Validate)).Methods(http.MethodPost)
	api.HandleFunc("/diff", handle(logger, svc.Diff)).Methods(http.MethodPost)
	api.HandleFunc("/tests/extract", handle(logger, svc.ExtractTests)).Methods(http.MethodPost)
	api.HandleFunc("/tests/add", handle(logger, svc.AddTestCase)).Methods(http.MethodPost)
	api.HandleFunc("/generate/tests", handle(logger, svc.GenerateTests)).Methods(http.MethodPost)
	api.HandleFunc("/generate/implementation", handle(logger, svc.GenerateImplementation)).Methods(http.MethodPost)
	api.HandleFunc("/autofix", handle(logger, svc.AutoFix)).Methods(http.MethodPost)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

func handle[Req any, Resp any](logger *zap.Logger, call func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				StatusMessage: "Invalid Request Format",
				Error:         err.Error(),
			})
			return
		}

		res, err := call(r.Context(), req)
		status := statusFor(err)
		if err != nil && status >= http.StatusInternalServerError {
			logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		}
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
		}
		writeJSON(w, status, res)
	}
}

func statusFor(err error) int {
	var serr *internal.SanitizationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrInvalidRequest), errors.As(err, &serr):
		return http.StatusBadRequest
	case errors.Is(err, executor.ErrQueueFull), errors.Is(err, executor.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrGenerationDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
