package assetcache

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"habitlog-api/domain"
)

// Handler returns the request intercept route: cache hit serves the stored
// response with no origin round trip; a miss goes to the origin and
// opportunistically populates the current generation when the response
// qualifies. An unreachable origin with no cache hit is a terminal failure
// for the request; no fallback body is served.
func Handler(cache *Cache) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		path := c.Request().URL.Path

		if sr, ok := cache.lookup(ctx, path); ok {
			return respond(c, sr)
		}

		sr, cacheable, err := cache.fetch(ctx, path)
		if err != nil {
			if errors.Is(err, domain.ErrNetworkUnavailable) {
				return c.String(http.StatusBadGateway, "asset unavailable")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "asset fetch failed")
		}
		if cacheable {
			cache.store(ctx, path, sr)
		}
		return respond(c, sr)
	}
}

func respond(c echo.Context, sr StoredResponse) error {
	h := c.Response().Header()
	for name, values := range sr.Header {
		for _, v := range values {
			h.Add(name, v)
		}
	}
	contentType := sr.Header.Get("Content-Type")
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Blob(sr.Status, contentType, sr.Body)
}
