package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/AvilaCamacho/CalculadoraFunciones/internal/governance"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/telemetry"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/volume"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries the caller's correlation id. A UUID is generated
// when it is absent.
const RequestIDHeader = "X-Request-ID"

// calculateRequest is the body of POST /calculate. Pointers distinguish a
// missing bound from a zero one.
type calculateRequest struct {
	Function   string   `json:"function"`
	A          *float64 `json:"a"`
	B          *float64 `json:"b"`
	C          *float64 `json:"c"`
	D          *float64 `json:"d"`
	NumPoints  int      `json:"num_points"`
	Resolution int      `json:"resolution"`
	SkipGrid   bool     `json:"skip_grid"`
}

type calculateResponse struct {
	Success     bool               `json:"success"`
	RequestID   string             `json:"request_id"`
	Volume      float64            `json:"volume"`
	Error       float64            `json:"error"`
	Function    string             `json:"function"`
	Canonical   string             `json:"canonical"`
	Domain      domain.Domain      `json:"domain"`
	Evaluations int                `json:"evaluations"`
	Grid        *domain.SampleGrid `json:"grid,omitempty"`
	Message     string             `json:"message"`
}

type errorBody struct {
	Success bool                 `json:"success"`
	Error   domain.ErrorResponse `json:"error"`
}

// badRequestError marks a malformed request rather than a calculation failure.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set(RequestIDHeader, requestID)

	client := clientKey(r)
	allowed, remaining, reset := s.limiter.Take(client)
	if limit := s.limiter.Limit(); limit.RequestsPerSecond > 0 {
		governance.WriteRateLimitHeaders(w, limit.BurstSize, remaining, reset)
	}
	if !allowed {
		s.metrics.RecordRateLimited()
		s.metrics.RecordCalculation(domain.CodeRateLimited, 0)
		telemetry.RecordRejected(r.Context(), "http", "rate_limited")
		s.logger.Warn("calculation rate limited", "client", client, "request_id", requestID)
		s.writeError(w, r, requestID, domain.CodeRateLimited, "rate limit exceeded, retry later")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody.Load())
	req, err := decodeCalculateRequest(r)
	if err != nil {
		s.metrics.RecordCalculation(domain.CodeBadRequest, 0)
		telemetry.RecordRejected(r.Context(), "http", "bad_request")
		s.writeError(w, r, requestID, domain.CodeBadRequest, err.Error())
		return
	}

	res, err := s.calculator.Calculate(r.Context(), req)
	if err != nil {
		code := domain.ErrorCode(err)
		s.metrics.RecordCalculation(code, 0)
		if code == domain.CodeInternal {
			s.logger.Error("calculation failed unexpectedly", "error", err, "request_id", requestID)
			s.writeError(w, r, requestID, code, "internal error")
			return
		}
		s.writeError(w, r, requestID, code, err.Error())
		return
	}

	s.metrics.RecordCalculation("OK", res.Evaluations)
	writeJSON(w, http.StatusOK, calculateResponse{
		Success:     true,
		RequestID:   requestID,
		Volume:      res.Volume,
		Error:       res.ErrorEstimate,
		Function:    res.Function,
		Canonical:   res.Canonical,
		Domain:      res.Domain,
		Evaluations: res.Evaluations,
		Grid:        res.Grid,
		Message:     fmt.Sprintf("Volume computed: %.6f", res.Volume),
	})
}

func (s *Server) handleExamples(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"examples": volume.Examples()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// recoverMiddleware turns a handler panic into a 500 response.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				requestID := w.Header().Get(RequestIDHeader)
				s.logger.Error("handler panic recovered",
					"panic", fmt.Sprint(rec),
					"path", r.URL.Path,
					"request_id", requestID,
				)
				s.writeError(w, r, requestID, domain.CodeInternal, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func decodeCalculateRequest(r *http.Request) (volume.Request, error) {
	var body calculateRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := decodeForm(r, &body); err != nil {
			return volume.Request{}, err
		}
	default:
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return volume.Request{}, badRequest("request body exceeds %d bytes", tooLarge.Limit)
			}
			return volume.Request{}, badRequest("invalid JSON body: %v", err)
		}
	}

	if strings.TrimSpace(body.Function) == "" {
		return volume.Request{}, badRequest("missing field: function")
	}
	bounds := []struct {
		name  string
		value *float64
	}{{"a", body.A}, {"b", body.B}, {"c", body.C}, {"d", body.D}}
	for _, b := range bounds {
		if b.value == nil {
			return volume.Request{}, badRequest("missing field: %s", b.name)
		}
	}

	resolution := body.NumPoints
	if resolution == 0 {
		resolution = body.Resolution
	}
	if resolution < 0 {
		return volume.Request{}, badRequest("num_points must be positive, got %d", resolution)
	}

	return volume.Request{
		Function:   body.Function,
		A:          *body.A,
		B:          *body.B,
		C:          *body.C,
		D:          *body.D,
		Resolution: resolution,
		SkipGrid:   body.SkipGrid,
	}, nil
}

func decodeForm(r *http.Request, body *calculateRequest) error {
	if err := r.ParseMultipartForm(32 << 10); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body exceeds %d bytes", tooLarge.Limit)
		}
		return badRequest("invalid form body: %v", err)
	}

	body.Function = r.PostFormValue("function")
	for _, field := range []struct {
		name string
		dst  **float64
	}{{"a", &body.A}, {"b", &body.B}, {"c", &body.C}, {"d", &body.D}} {
		raw := strings.TrimSpace(r.PostFormValue(field.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return badRequest("field %s is not a number: %q", field.name, raw)
		}
		*field.dst = &v
	}

	for _, name := range []string{"num_points", "resolution"} {
		raw := strings.TrimSpace(r.PostFormValue(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest("field %s is not an integer: %q", name, raw)
		}
		if name == "num_points" {
			body.NumPoints = n
		} else {
			body.Resolution = n
		}
	}

	if raw := r.PostFormValue("skip_grid"); raw != "" {
		skip, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest("field skip_grid is not a boolean: %q", raw)
		}
		body.SkipGrid = skip
	}
	return nil
}

// StatusForCode maps an error code onto its HTTP status.
func StatusForCode(code string) int {
	switch code {
	case domain.CodeParse, domain.CodeDomain, domain.CodeBadRequest:
		return http.StatusBadRequest
	case domain.CodeNonFinite, domain.CodeIntegration, domain.CodeConvergence:
		return http.StatusUnprocessableEntity
	case domain.CodeTimeout:
		return http.StatusGatewayTimeout
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, requestID, code, message string) {
	resp := domain.ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: requestID,
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		resp.TraceID = sc.TraceID().String()
	}
	writeJSON(w, StatusForCode(code), errorBody{Error: resp})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// clientKey identifies the caller for rate limiting.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
