package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

const Header = "Idempotency-Key"

type Keys interface {
	Claim(ctx context.Context, key string) (bool, []byte, error)
	Complete(ctx context.Context, key string, response []byte) error
	Release(ctx context.Context, key string) error
}

type cachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Middleware replays the first completed response for a repeated
// Idempotency-Key. Keys are scoped by scope(r), typically the caller
// identity. Requests without the header pass through. Server errors and
// panics release the key so the client may retry.
func Middleware(log *slog.Logger, keys Keys, scope func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(Header)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := "idem:http:" + scope(r) + ":" + r.Method + ":" + r.URL.Path + ":" + raw

			ctx := r.Context()
			claimed, stored, err := keys.Claim(ctx, key)
			if err != nil {
				log.Error("idempotency claim failed", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				replay(w, stored)
				return
			}

			// The key is released unless a response is stored, including
			// when the handler panics.
			stored = nil
			defer func() {
				if stored != nil {
					return
				}
				if err := keys.Release(context.WithoutCancel(ctx), key); err != nil {
					log.Error("idempotency release failed", "err", err)
				}
			}()

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				return
			}
			body := bytes.TrimSpace(rec.body.Bytes())
			if !json.Valid(body) {
				body = []byte("null")
			}
			payload, _ := json.Marshal(cachedResponse{Status: rec.status, Body: body})
			if err := keys.Complete(ctx, key, payload); err != nil {
				log.Error("idempotency store failed", "err", err)
				return
			}
			stored = payload
		})
	}
}

func replay(w http.ResponseWriter, stored []byte) {
	w.Header().Set("Content-Type", "application/json")
	var cached cachedResponse
	if len(stored) == 0 || json.Unmarshal(stored, &cached) != nil {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "request with this idempotency key is in progress"})
		return
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cached.Status)
	_, _ = w.Write(cached.Body)
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
