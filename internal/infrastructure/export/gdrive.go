package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"loan_report/internal/config"
	"loan_report/internal/domain/report"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	callbackPath     = "/callback"
	authorizeTimeout = 5 * time.Minute
	pdfMimeType      = "application/pdf"
)

// driveFormats maps a local document extension to its upload MIME type and
// the Google editor type Drive converts it into.
var driveFormats = map[report.TemplateType]struct {
	source string
	google string
}{
	report.TemplateDOCX: {
		source: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		google: "application/vnd.google-apps.document",
	},
	report.TemplateXLSX: {
		source: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		google: "application/vnd.google-apps.spreadsheet",
	},
}

// DriveConverter converts documents to PDF through Google Drive: upload with
// conversion to a Google document, export as PDF, delete the upload.
type DriveConverter struct {
	credentialsPath string
	tokenPath       string
	logger          *logrus.Logger

	// httpClient, when set, is used for the OAuth exchange and Drive calls.
	httpClient *http.Client
	// endpoint overrides the Drive API base URL.
	endpoint string
	// openURL presents the consent URL to the user.
	openURL func(url string) error
}

// NewDriveConverter builds a converter from export settings.
func NewDriveConverter(cfg config.Export, logger *logrus.Logger) *DriveConverter {
	c := &DriveConverter{
		credentialsPath: cfg.Credentials,
		tokenPath:       cfg.TokenFile,
		logger:          logger,
	}
	c.openURL = func(url string) error {
		c.logger.WithField("url", url).Warn("Open the URL in a browser to authorize Google Drive access")
		return nil
	}
	return c
}

// Export converts docPath and writes the PDF next to it.
func (c *DriveConverter) Export(ctx context.Context, docPath string) (string, error) {
	format, ok := driveFormats[report.TemplateTypeFromName(docPath)]
	if !ok {
		return "", report.NewError(report.KindExport, "drive export",
			fmt.Errorf("unsupported document type: %s", filepath.Ext(docPath)))
	}

	oauthCfg, err := c.oauthConfig()
	if err != nil {
		return "", err
	}

	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}

	fresh, err := c.validToken(ctx, oauthCfg)
	if err != nil {
		return "", err
	}

	opts := []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(fresh))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return "", report.NewError(report.KindExport, "create drive service", err)
	}

	return c.convert(ctx, srv, docPath, format.source, format.google)
}

func (c *DriveConverter) convert(ctx context.Context, srv *drive.Service, docPath, sourceMime, googleMime string) (string, error) {
	logger := c.logger.WithField("document", docPath)

	f, err := os.Open(docPath)
	if err != nil {
		return "", report.NewError(report.KindExport, "open document", err)
	}
	defer f.Close()

	created, err := srv.Files.Create(&drive.File{
		Name:     filepath.Base(docPath),
		MimeType: googleMime,
	}).Media(f, googleapi.ContentType(sourceMime)).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", report.NewError(report.KindExport, "upload to drive", err)
	}
	logger = logger.WithField("drive_file_id", created.Id)
	logger.Debug("Uploaded document to Google Drive")

	defer func() {
		// The upload is temporary; remove it even if the export failed.
		if err := srv.Files.Delete(created.Id).Context(context.WithoutCancel(ctx)).Do(); err != nil {
			logger.WithError(err).Warn("Failed to delete temporary Drive file")
		}
	}()

	resp, err := srv.Files.Export(created.Id, pdfMimeType).Context(ctx).Download()
	if err != nil {
		return "", report.NewError(report.KindExport, "export pdf", err)
	}
	defer resp.Body.Close()

	pdfPath := pdfPathFor(docPath)
	if err := writeFile(pdfPath, resp.Body); err != nil {
		return "", report.NewError(report.KindExport, "write pdf", err)
	}

	logger.WithField("pdf", pdfPath).Info("Exported PDF via Google Drive")
	return pdfPath, nil
}

func (c *DriveConverter) oauthConfig() (*oauth2.Config, error) {
	raw, err := os.ReadFile(c.credentialsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, report.NewError(report.KindExport, "load google credentials",
				fmt.Errorf("credentials file not found at %s", c.credentialsPath))
		}
		return nil, report.NewError(report.KindExport, "load google credentials", err)
	}

	cfg, err := google.ConfigFromJSON(raw, drive.DriveFileScope)
	if err != nil {
		return nil, report.NewError(report.KindExport, "parse google credentials", err)
	}
	return cfg, nil
}

// token returns the cached token or runs the consent flow and caches its result.
func (c *DriveConverter) token(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	tok, err := loadToken(c.tokenPath)
	if err == nil {
		return tok, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		c.logger.WithError(err).Warn("Ignoring unreadable Google token cache")
	}

	return c.consent(ctx, cfg)
}

// validToken returns a usable access token. A cached token that has expired
// and cannot be refreshed (no refresh token, or the grant was revoked) is
// replaced through a new consent flow.
func (c *DriveConverter) validToken(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	tok, err := c.token(ctx, cfg)
	if err != nil {
		return nil, err
	}

	fresh, err := cfg.TokenSource(ctx, tok).Token()
	if err != nil {
		c.logger.WithError(err).Warn("Cached Google token cannot be refreshed, requesting consent again")
		return c.consent(ctx, cfg)
	}
	if fresh.AccessToken != tok.AccessToken {
		if err := saveToken(c.tokenPath, fresh); err != nil {
			c.logger.WithError(err).Warn("Failed to persist refreshed Google token")
		}
	}
	return fresh, nil
}

// consent runs the authorization flow and caches the resulting token.
func (c *DriveConverter) consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	tok, err := c.authorize(ctx, cfg)
	if err != nil {
		return nil, report.NewError(report.KindExport, "authorize google drive", err)
	}
	if err := saveToken(c.tokenPath, tok); err != nil {
		c.logger.WithError(err).Warn("Failed to persist Google token")
	}
	return tok, nil
}

type callbackResult struct {
	code string
	err  error
}

// authorize runs the installed-app flow: a loopback HTTP listener receives
// the authorization code, which is exchanged with a PKCE verifier.
func (c *DriveConverter) authorize(ctx context.Context, base *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}

	cfg := *base
	cfg.RedirectURL = fmt.Sprintf("http://%s%s", ln.Addr(), callbackPath)

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	result := make(chan callbackResult, 1)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Listener = ln
	e.GET(callbackPath, func(ec echo.Context) error {
		if ec.QueryParam("state") != state {
			return ec.String(http.StatusBadRequest, "Invalid state parameter.")
		}
		res := callbackResult{code: ec.QueryParam("code")}
		if msg := ec.QueryParam("error"); msg != "" {
			res = callbackResult{err: fmt.Errorf("authorization denied: %s", msg)}
		} else if res.code == "" {
			res = callbackResult{err: fmt.Errorf("callback carried no authorization code")}
		}
		select {
		case result <- res:
		default:
		}
		if res.err != nil {
			return ec.String(http.StatusBadRequest, "Authorization failed. You can close this window.")
		}
		return ec.String(http.StatusOK, "Authorization complete. You can close this window.")
	})

	go func() {
		if err := e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case result <- callbackResult{err: fmt.Errorf("oauth callback server: %w", err)}:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	if err := c.openURL(authURL); err != nil {
		return nil, fmt.Errorf("open consent url: %w", err)
	}

	var res callbackResult
	select {
	case res = <-result:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authorizeTimeout):
		return nil, fmt.Errorf("timed out waiting for authorization")
	}
	if res.err != nil {
		return nil, res.err
	}

	return cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
}

func loadToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode token cache %s: %w", path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token cache %s holds no token", path)
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	raw, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, raw, 0o600)
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
