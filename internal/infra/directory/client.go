package directory

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/config"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/logger"
)

// Client talks to the external user/member directory over HTTP. It is the
// only component allowed to see raw credentials; everything downstream works
// with the resolved user snapshot.
type Client struct {
	http   *resty.Client
	cfg    config.DirectorySettings
	logger *zap.Logger
}

// NewClient constructs the directory client and verifies connectivity.
// The directory must answer within a fixed number of bootstrap attempts;
// without it the authority cannot validate a single credential, so
// exhausting the retries is a fatal initialization error.
func NewClient(ctx context.Context, cfg config.DirectorySettings, log *zap.Logger) (*Client, error) {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	if cfg.AdminToken != "" {
		httpClient.SetAuthToken(cfg.AdminToken)
	}

	c := &Client{http: httpClient, cfg: cfg, logger: log}

	retries := cfg.BootstrapRetries
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if lastErr = c.healthCheck(ctx); lastErr == nil {
			log.Info("directory reachable",
				zap.String("base_url", cfg.BaseURL),
				zap.Int("attempt", attempt),
			)
			return c, nil
		}

		log.Warn("directory bootstrap attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", retries),
			zap.Error(lastErr),
		)

		if attempt < retries {
			select {
			case <-time.After(cfg.BootstrapDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("directory bootstrap interrupted: %w", ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("directory unreachable after %d attempts: %w", retries, lastErr)
}

func (c *Client) healthCheck(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/api/health")
	if err != nil {
		return fmt.Errorf("directory health check: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("directory health check: status %d", resp.StatusCode())
	}
	return nil
}

type directoryRecord struct {
	ID               string   `json:"id"`
	Identity         string   `json:"identity"`
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	Status           string   `json:"status"`
	Avatar           string   `json:"avatar"`
	CollectionID     string   `json:"collectionId"`
	CollectionName   string   `json:"collectionName"`
	ExtraPermissions []string `json:"extra_permissions"`
}

type authResponse struct {
	Token  string          `json:"token"`
	Record directoryRecord `json:"record"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// AuthenticateWithPassword verifies the credentials against the given
// namespace and returns the resolved user snapshot. Wrong credentials map to
// ErrDirectoryAuthFailed; transport problems map to ErrDirectoryUnavailable.
func (c *Client) AuthenticateWithPassword(ctx context.Context, identity, password, namespace string) (*domain.User, error) {
	var (
		success authResponse
		failure errorResponse
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"identity": identity,
			"password": password,
		}).
		SetResult(&success).
		SetError(&failure).
		Post(fmt.Sprintf("/api/collections/%s/auth-with-password", namespace))
	if err != nil {
		c.logger.Error("directory authentication request failed",
			zap.String("identity", logger.MaskEmail(identity)),
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", port.ErrDirectoryUnavailable, err)
	}

	if resp.IsError() {
		switch resp.StatusCode() {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return nil, port.ErrDirectoryAuthFailed
		case http.StatusNotFound:
			return nil, port.ErrDirectoryAuthFailed
		default:
			c.logger.Error("directory authentication error response",
				zap.String("namespace", namespace),
				zap.Int("status", resp.StatusCode()),
				zap.String("message", failure.Message),
			)
			return nil, fmt.Errorf("%w: status %d", port.ErrDirectoryUnavailable, resp.StatusCode())
		}
	}

	user := c.toUser(success.Record, namespace)
	return &user, nil
}

// GetByID fetches the current directory record for a known user. The
// namespace is recovered from the record's collection, so callers only need
// the id embedded in a verified token.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.User, error) {
	for _, namespace := range []string{domain.NamespaceAdmins, domain.NamespaceMembers} {
		var record directoryRecord

		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&record).
			Get(fmt.Sprintf("/api/collections/%s/records/%s", namespace, id))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", port.ErrDirectoryUnavailable, err)
		}

		if resp.StatusCode() == http.StatusNotFound {
			continue
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%w: status %d", port.ErrDirectoryUnavailable, resp.StatusCode())
		}

		user := c.toUser(record, namespace)
		return &user, nil
	}

	return nil, port.ErrDirectoryNotFound
}

func (c *Client) toUser(record directoryRecord, namespace string) domain.User {
	role := domain.RoleMember
	if namespace == domain.NamespaceAdmins {
		role = domain.RoleAdmin
	}

	identity := record.Identity
	if identity == "" {
		identity = record.Email
	}

	status := domain.UserStatus(record.Status)
	if record.Status == "" {
		status = domain.UserStatusActive
	}

	user := domain.User{
		ID:               record.ID,
		Identity:         identity,
		Name:             record.Name,
		Role:             role,
		Status:           status,
		ExtraPermissions: record.ExtraPermissions,
	}

	// Avatar enrichment applies to member accounts only.
	if role == domain.RoleMember && record.Avatar != "" {
		url := fmt.Sprintf("%s/api/files/%s/%s/%s",
			strings.TrimRight(c.cfg.BaseURL, "/"), record.CollectionID, record.ID, record.Avatar)
		user.AvatarURL = &url
	}

	return user
}

var _ port.Directory = (*Client)(nil)
