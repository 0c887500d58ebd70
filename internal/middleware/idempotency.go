package middleware

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HeaderIdempotencyKey lets clients retry a POST without repeating its effect.
const HeaderIdempotencyKey = "Idempotency-Key"

// ErrRequestInFlight is returned by Acquire while another request with the
// same key is still running.
var ErrRequestInFlight = errors.New("request with this idempotency key is in progress")

// CachedResponse is a stored reply.
type CachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	// Fingerprint is the sha256 of the request body that produced the reply.
	Fingerprint string `json:"fingerprint"`
}

// IdempotencyStore persists replies keyed by user, route and client key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool, error)
	Save(ctx context.Context, key string, resp CachedResponse) error
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Idempotency replays the stored reply for a repeated Idempotency-Key on
// POST requests. A key reused with a different body gets 422. Server errors
// are not stored so the client can retry them. It must run after
// JWTMiddleware.
func Idempotency(st IdempotencyStore, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			clientKey := req.Header.Get(HeaderIdempotencyKey)
			if req.Method != http.MethodPost || clientKey == "" {
				return next(c)
			}
			userID, _ := c.Get("user_id").(string)
			key := userID + ":" + req.URL.Path + ":" + clientKey
			ctx := req.Context()

			fingerprint, err := bodyFingerprint(req)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read request body"})
			}

			if cached, ok, err := st.Get(ctx, key); err != nil {
				logger.WarnContext(ctx, "idempotency lookup failed", slog.Any("error", err))
				return next(c)
			} else if ok {
				if cached.Fingerprint != fingerprint {
					return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "idempotency key reused with a different request body"})
				}
				c.Response().Header().Set("Idempotent-Replayed", "true")
				return c.Blob(cached.Status, cached.ContentType, cached.Body)
			}

			release, err := st.Acquire(ctx, key)
			if errors.Is(err, ErrRequestInFlight) {
				return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
			}
			if err != nil {
				logger.WarnContext(ctx, "idempotency lock failed", slog.Any("error", err))
				return next(c)
			}
			defer release()

			rec := &recordingWriter{ResponseWriter: c.Response().Writer}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				return err
			}

			status := c.Response().Status
			if status >= http.StatusInternalServerError {
				return nil
			}
			resp := CachedResponse{
				Status:      status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.body.Bytes(),
				Fingerprint: fingerprint,
			}
			if err := st.Save(context.WithoutCancel(ctx), key, resp); err != nil {
				logger.WarnContext(ctx, "idempotency save failed", slog.Any("error", err))
			}
			return nil
		}
	}
}

// bodyFingerprint hashes the request body and puts it back for the handler.
func bodyFingerprint(req *http.Request) (string, error) {
	var body []byte
	if req.Body != nil {
		var err error
		if body, err = io.ReadAll(req.Body); err != nil {
			return "", err
		}
		_ = req.Body.Close()
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// recordingWriter copies the response body while passing it through.
type recordingWriter struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *recordingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijack not supported")
}
