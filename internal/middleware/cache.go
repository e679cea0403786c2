package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cabin-reservation/internal/cache"
	"github.com/iliyamo/cabin-reservation/internal/config"
)

// captureWriter copies the response body while forwarding it to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size < cw.limit {
		cw.buf.Write(b)
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// TagFunc names the invalidation tags of the view a request renders.
type TagFunc func(c echo.Context) []string

// ResponseCache serves GET views from the tagged cache.  Views are dropped
// by tag when a booking mutation touches the data behind them.
type ResponseCache struct {
	cfg   config.CacheConfig
	store *cache.Tagged
	log   *slog.Logger
}

// NewResponseCache returns a ResponseCache.  A disabled config or nil store
// makes every middleware it builds a pass-through.
func NewResponseCache(cfg config.CacheConfig, store *cache.Tagged, log *slog.Logger) *ResponseCache {
	return &ResponseCache{cfg: cfg, store: store, log: log}
}

// Public caches a view that looks the same for every caller.
func (rc *ResponseCache) Public(tags TagFunc) echo.MiddlewareFunc { return rc.handle(tags, false) }

// Private caches a view per caller identity.
func (rc *ResponseCache) Private(tags TagFunc) echo.MiddlewareFunc { return rc.handle(tags, true) }

func (rc *ResponseCache) handle(tags TagFunc, private bool) echo.MiddlewareFunc {
	if rc == nil || !rc.cfg.Enabled || rc.store == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKeyFrom(c, private)

			if bs, ok, err := rc.store.Get(ctx, key); err != nil {
				rc.log.Warn("cache read failed", "key", key, "error", err)
			} else if ok {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, _ = c.Response().Write(body)
					return nil
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || (cw.limit > 0 && cw.size > cw.limit) {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			hdr.Del(echo.HeaderSetCookie)
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			var tagList []string
			if tags != nil {
				tagList = tags(c)
			}
			if err := rc.store.Set(context.WithoutCancel(ctx), key, payload, tagList); err != nil {
				rc.log.Warn("cache write failed", "key", key, "error", err)
			}
			return nil
		}
	}
}

// cacheKeyFrom hashes route, path params and query, plus the caller for
// private views.
func cacheKeyFrom(c echo.Context, private bool) string {
	r := c.Request()
	parts := []string{r.Method, r.URL.Path, r.URL.RawQuery}
	if private {
		parts = append(parts, identity(c))
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
