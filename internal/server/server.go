package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/metal-toolbox/inventory/internal/app"
	"github.com/metal-toolbox/inventory/internal/ingest"
	"github.com/metal-toolbox/inventory/internal/metrics"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/metal-toolbox/inventory/internal/store"
	"github.com/metal-toolbox/inventory/internal/version"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	pkgName = "internal/server"

	RequestIDHeader = "X-Request-ID"

	// maxBodyBytes bounds request bodies, a snapshot is a few KB.
	maxBodyBytes = 4 << 20

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

var ErrAuth = errors.New("authentication error")

// Verifier checks bearer tokens, *oidc.IDTokenVerifier satisfies it.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Server is the HTTP surface of the ingest service.
type Server struct {
	svc      *ingest.Service
	logger   *logrus.Logger
	verifier Verifier
}

// Option sets a Server parameter.
type Option func(*Server)

// WithVerifier requires a valid bearer token on every /api route.
func WithVerifier(v Verifier) Option {
	return func(s *Server) {
		s.verifier = v
	}
}

// New returns a Server over svc.
func New(svc *ingest.Service, logger *logrus.Logger, options ...Option) *Server {
	s := &Server{svc: svc, logger: logger}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// NewVerifier returns the bearer token verifier of the OIDC issuer.
func NewVerifier(ctx context.Context, cfg *app.OIDCOptions) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerEndpoint)
	if err != nil {
		return nil, errors.Wrap(ErrAuth, "oidc provider: "+err.Error())
	}

	return provider.Verifier(&oidc.Config{ClientID: cfg.Audience}), nil
}

// Handler returns the router serving the API.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.tracing(), s.accessLog())

	r.GET("/health", s.health)

	api := r.Group("/api")
	if s.verifier != nil {
		api.Use(s.authenticate())
	}

	api.POST("/inventory", s.ingest)
	api.GET("/support_status", s.supportStatus)
	api.GET("/assets", s.assets)
	api.GET("/assets/:hostname", s.asset)
	api.PATCH("/assets/:hostname", s.updateAsset)
	api.PUT("/assets/:hostname/status", s.updateStatus)
	api.GET("/assets/:hostname/maintenance", s.maintenanceLog)

	return r
}

// ListenAndServe serves the API on listen until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.WithField("listen", listen).Info("inventory API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// tracing starts the server span of the request.
func (s *Server) tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := otel.Tracer(pkgName).Start(
			c.Request.Context(),
			c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("request_id", c.GetString(RequestIDHeader))),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		code := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", code))

		if code >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(code))
		}
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		code := c.Writer.Status()

		metrics.HTTPRequestCounter.With(prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"code":   strconv.Itoa(code),
		}).Inc()

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     code,
			"latency":    time.Since(started).String(),
			"request_id": c.GetString(RequestIDHeader),
			"client":     c.ClientIP(),
		}

		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}

		s.logger.WithFields(fields).Debug("request served")
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			abort(c, http.StatusUnauthorized, "bearer token required")
			return
		}

		if _, err := s.verifier.Verify(c.Request.Context(), strings.TrimSpace(raw)); err != nil {
			s.logger.WithError(err).WithField("request_id", c.GetString(RequestIDHeader)).Debug("token rejected")
			abort(c, http.StatusUnauthorized, "invalid bearer token")

			return
		}

		c.Next()
	}
}

func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, &model.APIResponse{Status: model.ResponseError, Message: message})
}

// fail writes the response of an ingest service error, internal errors carry no detail.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ingest.ErrValidation):
		abort(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrAssetNotFound):
		abort(c, http.StatusNotFound, err.Error())
	default:
		abort(c, http.StatusInternalServerError, ingest.ErrInternal.Error())
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Current().AppVersion})
}

func (s *Server) ingest(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		abort(c, http.StatusBadRequest, "request body: "+err.Error())
		return
	}

	ack, err := s.svc.Ingest(c.Request.Context(), raw)
	if err != nil {
		s.fail(c, err)
		return
	}

	message := "inventory updated"
	if ack.Created {
		message = "inventory created"
	}

	c.JSON(http.StatusOK, &model.APIResponse{Status: model.ResponseSuccess, Hostname: ack.Hostname, Message: message})
}

func (s *Server) supportStatus(c *gin.Context) {
	status, err := s.svc.SupportStatus(c.Query("serial"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) assets(c *gin.Context) {
	records, err := s.svc.Assets(c.Request.Context(), c.Query("hostname"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

func (s *Server) asset(c *gin.Context) {
	record, err := s.svc.Asset(c.Request.Context(), c.Param("hostname"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) maintenanceLog(c *gin.Context) {
	entries, err := s.svc.MaintenanceLog(c.Request.Context(), c.Param("hostname"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (s *Server) updateStatus(c *gin.Context) {
	req := &model.StatusRequest{}
	if err := decodeStrict(c, req); err != nil {
		s.fail(c, err)
		return
	}

	ack, err := s.svc.UpdateStatus(c.Request.Context(), c.Param("hostname"), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}

func (s *Server) updateAsset(c *gin.Context) {
	update := &model.ManualUpdate{}
	if err := decodeStrict(c, update); err != nil {
		s.fail(c, err)
		return
	}

	hostname := c.Param("hostname")
	if err := s.svc.UpdateManual(c.Request.Context(), hostname, update); err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, &model.APIResponse{Status: model.ResponseSuccess, Hostname: hostname, Message: "asset updated"})
}

// decodeStrict decodes the JSON body into v, fields v does not declare are rejected.
func decodeStrict(c *gin.Context, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return errors.Wrap(ingest.ErrValidation, "request body: "+err.Error())
	}

	return nil
}
