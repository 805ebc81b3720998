package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/plnes-bukittinggi/yandal-patrol/internal/masterdata"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/reports"
	"go.uber.org/zap"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 64 << 20

	actionGetAll       = "getAll"
	actionSaveReport   = "saveReport"
	actionUpdateMaster = "updateMaster"
)

var (
	// ErrInvalidClientConfig indicates a client built without a usable endpoint.
	ErrInvalidClientConfig = errors.New("remote: invalid client config")
	// ErrEndpointMisconfigured indicates that the endpoint answered with an HTML page instead of JSON,
	// usually a login page because the script is not deployed with access "Anyone".
	ErrEndpointMisconfigured = errors.New("remote: endpoint returned html, deploy the script with access \"Anyone\"")
	// ErrUnexpectedStatus indicates a non-2xx response.
	ErrUnexpectedStatus = errors.New("remote: unexpected status")
	// ErrMalformedPayload indicates a response body that is not the expected JSON document.
	ErrMalformedPayload = errors.New("remote: malformed payload")
)

// ServiceError carries a dotted operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opFetchAll     = "remote.fetch_all"
	opSaveReport   = "remote.save_report"
	opUpdateMaster = "remote.update_master"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ClientConfig bundles configuration required to instantiate a Client.
type ClientConfig struct {
	Endpoint   string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Snapshot is the full content of the remote store.
type Snapshot struct {
	Reports    []reports.Report
	MasterData masterdata.Catalog
	// Skipped counts report rows that could not be decoded.
	Skipped int
}

// Client talks to the spreadsheet script endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a client with validated configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidClientConfig)
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: endpoint must be an absolute url", ErrInvalidClientConfig)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{endpoint: endpoint, httpClient: httpClient, logger: logger}, nil
}

type getAllDocument struct {
	Reports    []json.RawMessage  `json:"reports"`
	MasterData masterdata.Catalog `json:"masterData"`
}

type actionRequest struct {
	Action string `json:"action"`
	Data   any    `json:"data"`
}

// FetchAll downloads every report and the master data. Rows that do not decode into a report are skipped
// and counted rather than failing the whole poll.
func (c *Client) FetchAll(ctx context.Context) (Snapshot, error) {
	target, err := url.Parse(c.endpoint)
	if err != nil {
		return Snapshot{}, newServiceError(opFetchAll, "invalid_endpoint", err)
	}
	query := target.Query()
	query.Set("action", actionGetAll)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Snapshot{}, newServiceError(opFetchAll, "build_request", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(opFetchAll, req)
	if err != nil {
		return Snapshot{}, err
	}

	var document getAllDocument
	if err := json.Unmarshal(body, &document); err != nil {
		return Snapshot{}, newServiceError(opFetchAll, "malformed_payload", fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}

	snapshot := Snapshot{
		Reports:    make([]reports.Report, 0, len(document.Reports)),
		MasterData: document.MasterData,
	}
	for index, raw := range document.Reports {
		var report reports.Report
		if err := json.Unmarshal(raw, &report); err != nil {
			snapshot.Skipped++
			c.logger.Debug("skipping report row", zap.Int("row", index), zap.Error(err))
			continue
		}
		snapshot.Reports = append(snapshot.Reports, report)
	}
	return snapshot, nil
}

// SaveReport appends or updates one report row; the script uploads inline photos and stores their URLs.
func (c *Client) SaveReport(ctx context.Context, report reports.Report) error {
	return c.post(ctx, opSaveReport, actionRequest{Action: actionSaveReport, Data: report})
}

// UpdateMaster replaces the master data sheet with catalog.
func (c *Client) UpdateMaster(ctx context.Context, catalog masterdata.Catalog) error {
	return c.post(ctx, opUpdateMaster, actionRequest{Action: actionUpdateMaster, Data: catalog})
}

func (c *Client) post(ctx context.Context, operation string, payload actionRequest) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return newServiceError(operation, "encode_request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return newServiceError(operation, "build_request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(operation, req)
	return err
}

func (c *Client) do(operation string, req *http.Request) ([]byte, error) {
	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newServiceError(operation, "transport", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, newServiceError(operation, "read_body", err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, newServiceError(operation, "unexpected_status", fmt.Errorf("%w: %d", ErrUnexpectedStatus, response.StatusCode))
	}
	if looksLikeHTML(body) {
		c.logger.Warn("remote endpoint returned html",
			zap.String("operation", operation),
			zap.String("hint", "deploy the script with access \"Anyone\""),
		)
		return nil, newServiceError(operation, "html_response", ErrEndpointMisconfigured)
	}
	return body, nil
}

func looksLikeHTML(body []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("<"))
}
