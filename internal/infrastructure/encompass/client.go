package encompass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loan_report/internal/config"
	"loan_report/internal/domain/report"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// maxErrorBody bounds how much of a failed response is echoed into errors.
const maxErrorBody = 512

// Client talks to the Encompass REST API: one password-grant token exchange
// followed by one report request.
type Client struct {
	cfg        config.Encompass
	oauth      oauth2.Config
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient builds a client. A nil httpClient gets a default one with the
// configured timeout; its transport is always wrapped for tracing.
func NewClient(cfg config.Encompass, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	traced := *httpClient
	traced.Transport = otelhttp.NewTransport(base)

	var scopes []string
	if cfg.Scope != "" {
		scopes = strings.Fields(cfg.Scope)
	}

	return &Client{
		cfg: cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.Expand(cfg.TokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: scopes,
		},
		httpClient: &traced,
		logger:     logger,
	}
}

// Token performs the password-grant exchange and returns the bearer token.
// The token is not cached: every call hits the token endpoint.
func (c *Client) Token(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	start := time.Now()
	tok, err := c.oauth.PasswordCredentialsToken(ctx, c.cfg.Username, c.cfg.Password)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return "", report.NewError(report.KindAuthentication, "token exchange",
				fmt.Errorf("token endpoint returned %d: %s", rerr.Response.StatusCode, truncate(rerr.Body)))
		}
		return "", report.NewError(report.KindAuthentication, "token exchange", err)
	}

	c.logger.WithFields(logrus.Fields{
		"duration": time.Since(start),
		"expiry":   tok.Expiry,
	}).Debug("Obtained Encompass access token")

	return tok.AccessToken, nil
}

// FetchReport issues the single report request and flattens the JSON body.
func (c *Client) FetchReport(ctx context.Context, token string, id report.ID) (report.Fields, error) {
	url := strings.ReplaceAll(c.cfg.Expand(c.cfg.ReportURL), "{report_id}", id.String())
	method := strings.ToUpper(c.cfg.ReportMethod)

	var body io.Reader
	if method == http.MethodPost {
		ids := c.cfg.FieldIDs
		if ids == nil {
			ids = []string{}
		}
		payload, err := json.Marshal(ids)
		if err != nil {
			return nil, report.NewError(report.KindFetch, "encode field ids", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, report.NewError(report.KindFetch, "build report request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := c.logger.WithFields(logrus.Fields{
		"report_id": id,
		"method":    method,
	})
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, report.NewError(report.KindFetch, "report request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, report.NewError(report.KindFetch, "read report response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.WithField("status", resp.StatusCode).Warn("Report request rejected")
		return nil, report.NewError(report.KindFetch, "report request",
			fmt.Errorf("report %s not found or access denied: status %d: %s", id, resp.StatusCode, truncate(raw)))
	}

	fields, err := Flatten(raw)
	if err != nil {
		return nil, report.NewError(report.KindParsing, "decode report response", err)
	}

	logger.WithFields(logrus.Fields{
		"duration": time.Since(start),
		"fields":   len(fields),
	}).Info("Fetched report data")

	return fields, nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
