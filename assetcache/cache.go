package assetcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"habitlog-api/domain"
)

const keyPrefix = "assets:"

// storedHeaders is the subset of response headers kept with a cached asset.
var storedHeaders = []string{"Content-Type", "Cache-Control", "ETag", "Last-Modified"}

// StoredResponse is the serialized form of a cached asset response.
type StoredResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// Cache keeps one versioned generation of static asset responses in Redis.
// Install populates the current generation, Activate prunes every other
// generation, and lookup/fetch back the request intercept path.
type Cache struct {
	redis   *redis.Client
	client  *http.Client
	origin  *url.URL
	version string
	logger  *log.Logger
}

// New creates a Cache for the given origin base URL and cache-generation
// version identifier.
func New(client *redis.Client, httpClient *http.Client, origin, version string, logger *log.Logger) (*Cache, error) {
	if version == "" {
		return nil, fmt.Errorf("asset cache version is required")
	}
	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("origin url must be absolute: %s", origin)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Cache{
		redis:   client,
		client:  httpClient,
		origin:  base,
		version: version,
		logger:  logger,
	}, nil
}

func (c *Cache) key(path string) string {
	return keyPrefix + c.version + ":" + path
}

// Install fetches every manifest path from the origin and stores the
// responses under the current generation. It is atomic with respect to the
// generation: responses are held in memory until every fetch succeeded, so a
// failed install writes nothing.
func (c *Cache) Install(ctx context.Context, manifest []string) error {
	installID := uuid.NewString()
	fetched := make(map[string]StoredResponse, len(manifest))
	for _, path := range manifest {
		sr, _, err := c.fetch(ctx, path)
		if err != nil {
			c.logger.WithFields(log.Fields{"install_id": installID, "path": path}).WithError(err).Error("asset install aborted")
			return fmt.Errorf("%w: %s: %v", domain.ErrAssetFetch, path, err)
		}
		if sr.Status != http.StatusOK {
			c.logger.WithFields(log.Fields{"install_id": installID, "path": path, "status": sr.Status}).Error("asset install aborted")
			return fmt.Errorf("%w: %s: status %d", domain.ErrAssetFetch, path, sr.Status)
		}
		fetched[path] = sr
	}

	pipe := c.redis.Pipeline()
	for path, sr := range fetched {
		data, err := sonic.Marshal(sr)
		if err != nil {
			return fmt.Errorf("encode asset %s: %w", path, err)
		}
		pipe.Set(ctx, c.key(path), data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store assets: %w", err)
	}

	c.logger.WithFields(log.Fields{
		"install_id": installID,
		"version":    c.version,
		"assets":     len(fetched),
	}).Info("asset cache generation installed")
	return nil
}

// Activate deletes every cache generation except the current one. It is
// idempotent and order-independent; deleting an already-absent generation is
// a no-op.
func (c *Cache) Activate(ctx context.Context) error {
	current := keyPrefix + c.version + ":"
	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("enumerate cache generations: %w", err)
		}
		stale := keys[:0]
		for _, k := range keys {
			if !strings.HasPrefix(k, current) {
				stale = append(stale, k)
			}
		}
		if len(stale) > 0 {
			if err := c.redis.Del(ctx, stale...).Err(); err != nil {
				return fmt.Errorf("prune cache generations: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.logger.WithField("version", c.version).Info("asset cache generation activated")
	return nil
}

// lookup consults the current generation by exact path match.
func (c *Cache) lookup(ctx context.Context, path string) (StoredResponse, bool) {
	if c.redis == nil {
		return StoredResponse{}, false
	}
	data, err := c.redis.Get(ctx, c.key(path)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("path", path).Warn("asset cache lookup failed")
		}
		return StoredResponse{}, false
	}
	var sr StoredResponse
	if err := sonic.Unmarshal(data, &sr); err != nil {
		_ = c.redis.Del(ctx, c.key(path)).Err()
		return StoredResponse{}, false
	}
	return sr, true
}

// store writes one fetched response into the current generation. Failures
// are logged and swallowed; opportunistic population must not break serving.
func (c *Cache) store(ctx context.Context, path string, sr StoredResponse) {
	if c.redis == nil {
		return
	}
	data, err := sonic.Marshal(sr)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.key(path), data, 0).Err(); err != nil {
		c.logger.WithError(err).WithField("path", path).Warn("asset cache store failed")
	}
}

// fetch performs the origin request for a path. The bool reports whether the
// response is cacheable: success status and same-origin after redirects.
// Transport failures wrap ErrNetworkUnavailable.
func (c *Cache) fetch(ctx context.Context, path string) (StoredResponse, bool, error) {
	target := c.origin.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return StoredResponse{}, false, fmt.Errorf("build asset request %s: %w", path, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return StoredResponse{}, false, fmt.Errorf("%w: %s: %v", domain.ErrNetworkUnavailable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return StoredResponse{}, false, fmt.Errorf("%w: %s: %v", domain.ErrNetworkUnavailable, path, err)
	}

	header := make(http.Header, len(storedHeaders))
	for _, name := range storedHeaders {
		if v := resp.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}

	sr := StoredResponse{Status: resp.StatusCode, Header: header, Body: body}
	cacheable := resp.StatusCode == http.StatusOK && sameOrigin(c.origin, resp.Request.URL)
	return sr, cacheable, nil
}

// sameOrigin reports whether the final response URL (after any redirects)
// still points at the configured origin.
func sameOrigin(origin, final *url.URL) bool {
	if final == nil {
		return false
	}
	return origin.Scheme == final.Scheme && origin.Host == final.Host
}
