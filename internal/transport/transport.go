package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/metal-toolbox/inventory/internal/app"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	pkgName = "internal/transport"

	defaultTimeout  = 10 * time.Second
	defaultClientID = "inventory-agent"

	// ingestPath is the path of the ingest endpoint below the API root.
	ingestPath = "/inventory"

	// maxBodyBytes bounds the response body read from the server.
	maxBodyBytes = 1 << 20
)

var (
	ErrNetwork  = errors.New("network error")
	ErrTimeout  = errors.New("request timed out")
	ErrStatus   = errors.New("unexpected response status")
	ErrResponse = errors.New("malformed server response")
	ErrNotFound = errors.New("asset not found")
	ErrEndpoint = errors.New("invalid endpoint")
)

// StatusError is returned for a non 2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %d", ErrStatus.Error(), e.Code)
	}

	return fmt.Sprintf("%s: %d: %s", ErrStatus.Error(), e.Code, e.Message)
}

// Is matches ErrStatus, and ErrNotFound for a 404 response.
func (e *StatusError) Is(target error) bool {
	return target == ErrStatus || (target == ErrNotFound && e.Code == http.StatusNotFound)
}

// Retryable returns true when the caller may run the collection and send again later.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout)
}

// Client talks to the inventory API.
type Client struct {
	endpoint string
	apiRoot  string
	http     *http.Client
	logger   *logrus.Logger
}

// New returns a Client for the ingest endpoint configured in cfg.
func New(ctx context.Context, cfg *app.AgentOptions, logger *logrus.Logger) (*Client, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, errors.Wrap(ErrEndpoint, cfg.Endpoint)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	retryableClient := retryablehttp.NewClient()
	retryableClient.RetryMax = cfg.Retries
	retryableClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	// collect telemetry
	retryableClient.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	// disable default debug logging on the retryable client
	if logger.Level < logrus.DebugLevel {
		retryableClient.Logger = nil
	} else {
		retryableClient.Logger = logger
	}

	if cfg.OAuth.Enabled {
		source, err := tokenSource(ctx, &cfg.OAuth)
		if err != nil {
			return nil, err
		}

		retryableClient.HTTPClient.Transport = &oauth2.Transport{
			Source: source,
			Base:   retryableClient.HTTPClient.Transport,
		}
	}

	httpClient := retryableClient.StandardClient()
	httpClient.Timeout = timeout

	apiRoot := *endpoint
	apiRoot.Path = strings.TrimSuffix(strings.TrimSuffix(endpoint.Path, "/"), ingestPath)

	return &Client{
		endpoint: endpoint.String(),
		apiRoot:  apiRoot.String(),
		http:     httpClient,
		logger:   logger,
	}, nil
}

// tokenSource returns the client credentials token source of the OIDC issuer.
func tokenSource(ctx context.Context, cfg *app.OAuthOptions) (oauth2.TokenSource, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerEndpoint)
	if err != nil {
		return nil, errors.Wrap(ErrNetwork, "oidc provider: "+err.Error())
	}

	clientID := defaultClientID
	if cfg.ClientID != "" {
		clientID = cfg.ClientID
	}

	oauthConfig := clientcredentials.Config{
		ClientID:       clientID,
		ClientSecret:   cfg.ClientSecret,
		TokenURL:       provider.Endpoint().TokenURL,
		Scopes:         cfg.Scopes,
		EndpointParams: url.Values{"audience": []string{cfg.AudienceEndpoint}},
	}

	return oauthConfig.TokenSource(ctx), nil
}

// Send posts the snapshot to the ingest endpoint.
func (c *Client) Send(ctx context.Context, snapshot *model.Snapshot) (*model.APIResponse, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Client.Send")
	defer span.End()

	resp := &model.APIResponse{}
	if err := c.do(ctx, http.MethodPost, c.endpoint, snapshot, resp); err != nil {
		return nil, err
	}

	if resp.Status != model.ResponseSuccess {
		return nil, errors.Wrap(ErrResponse, "status: "+resp.Status)
	}

	c.logger.WithFields(logrus.Fields{
		"hostname": resp.Hostname,
		"endpoint": c.endpoint,
	}).Debug("snapshot delivered")

	return resp, nil
}

// SetStatus changes the status of the asset.
func (c *Client) SetStatus(ctx context.Context, hostname string, req *model.StatusRequest) (*model.StatusAck, error) {
	ack := &model.StatusAck{}
	if err := c.do(ctx, http.MethodPut, c.assetURL(hostname, "status"), req, ack); err != nil {
		return nil, err
	}

	return ack, nil
}

// UpdateAsset applies an edit of manual fields to the asset.
func (c *Client) UpdateAsset(ctx context.Context, hostname string, update *model.ManualUpdate) error {
	return c.do(ctx, http.MethodPatch, c.assetURL(hostname), update, &model.APIResponse{})
}

// Asset returns the record of hostname.
func (c *Client) Asset(ctx context.Context, hostname string) (*model.AssetRecord, error) {
	record := &model.AssetRecord{}
	if err := c.do(ctx, http.MethodGet, c.assetURL(hostname), nil, record); err != nil {
		return nil, err
	}

	return record, nil
}

// Assets returns the records whose hostname contains the value, every record when it is empty.
func (c *Client) Assets(ctx context.Context, hostnameContains string) ([]*model.AssetRecord, error) {
	u := c.apiRoot + "/assets"
	if hostnameContains != "" {
		u += "?" + url.Values{"hostname": []string{hostnameContains}}.Encode()
	}

	records := []*model.AssetRecord{}
	if err := c.do(ctx, http.MethodGet, u, nil, &records); err != nil {
		return nil, err
	}

	return records, nil
}

// MaintenanceLog returns the maintenance history of hostname.
func (c *Client) MaintenanceLog(ctx context.Context, hostname string) ([]*model.MaintenanceLogEntry, error) {
	entries := []*model.MaintenanceLogEntry{}
	if err := c.do(ctx, http.MethodGet, c.assetURL(hostname, "maintenance"), nil, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// SupportStatus queries the support entitlement of serial.
func (c *Client) SupportStatus(ctx context.Context, serial string) (*model.SupportStatus, error) {
	u := c.apiRoot + "/support_status?" + url.Values{"serial": []string{serial}}.Encode()

	status := &model.SupportStatus{}
	if err := c.do(ctx, http.MethodGet, u, nil, status); err != nil {
		return nil, err
	}

	return status, nil
}

func (c *Client) assetURL(hostname string, elem ...string) string {
	parts := append([]string{c.apiRoot, "assets", url.PathEscape(hostname)}, elem...)
	return strings.Join(parts, "/")
}

// do sends body as JSON and decodes a 2xx response into out.
func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}

		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errors.Wrap(ErrEndpoint, err.Error())
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return requestError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return requestError(err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &StatusError{Code: resp.StatusCode}

		apiResp := &model.APIResponse{}
		if json.Unmarshal(data, apiResp) == nil {
			statusErr.Message = apiResp.Message
		}

		return statusErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(ErrResponse, err.Error())
	}

	return nil
}

// requestError classifies a failed request as a timeout or a network error.
func requestError(err error) error {
	var netErr net.Error

	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Wrap(ErrTimeout, err.Error())
	}

	return errors.Wrap(ErrNetwork, err.Error())
}
