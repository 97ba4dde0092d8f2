package llm

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"
)

// ResponseCache is a SQLite-backed cache for model responses. It is keyed
// by a hash of the full request (model, messages, tool definitions) so a
// repeated task against an unchanged screen state can skip the model call.
//
// Only final-answer responses are cached. Caching tool-call responses would
// replay device actions against a screen that may have changed.
type ResponseCache struct {
	db  *sql.DB
	ttl time.Duration
}

// NewResponseCache opens (or creates) the cache database at path.
func NewResponseCache(path string, ttl time.Duration) (*ResponseCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	c := &ResponseCache{db: db, ttl: ttl}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *ResponseCache) init() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`CREATE INDEX IF NOT EXISTS idx_expires_at ON cache_entries(expires_at)`)
	return err
}

// Key derives the cache key for a request. Image parts are hashed by their
// bytes so two screenshots of the same pixels produce the same key.
func (c *ResponseCache) Key(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.Model))
	for _, msg := range req.Messages {
		h.Write([]byte(msg.Role))
		for _, part := range msg.Content {
			switch part.Kind {
			case ContentText:
				h.Write([]byte(part.Text))
			case ContentImage:
				h.Write(part.Image.Data)
				h.Write([]byte(part.Image.URL))
			case ContentToolCall:
				h.Write([]byte(part.ToolCall.Name))
				h.Write(part.ToolCall.Arguments)
			case ContentToolResult:
				h.Write([]byte(part.ToolResult.Content))
			}
		}
	}
	for _, def := range req.ToolDefs {
		h.Write([]byte(def.Name))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response for key, or nil on a miss. Expired
// entries are deleted lazily.
func (c *ResponseCache) Get(ctx context.Context, key string) (*Response, error) {
	var value string
	var expiresAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key).
		Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > expiresAt {
		_, _ = c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return nil, nil
	}
	var resp Response
	if err := json.Unmarshal([]byte(value), &resp); err != nil {
		return nil, nil
	}
	return &resp, nil
}

// Put stores a response under key.
func (c *ResponseCache) Put(ctx context.Context, key string, resp *Response) error {
	value, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries (key, value, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		key, string(value), now.Unix(), now.Add(c.ttl).Unix())
	return err
}

// Cleanup removes expired entries.
func (c *ResponseCache) Cleanup(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at < ?`, time.Now().Unix())
	return err
}

// Prune deletes the oldest entries until at most maxEntries remain.
func (c *ResponseCache) Prune(ctx context.Context, maxEntries int) error {
	var count int
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return err
	}
	if count <= maxEntries {
		return nil
	}
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE key IN (
			SELECT key FROM cache_entries
			ORDER BY created_at ASC
			LIMIT ?
		)`, count-maxEntries)
	return err
}

// Close releases the database handle.
func (c *ResponseCache) Close() error {
	return c.db.Close()
}

// Middleware returns a Client middleware that serves cached final answers
// and stores new ones. Cache failures never fail the request.
func (c *ResponseCache) Middleware() Middleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		key := c.Key(req)
		if cached, err := c.Get(ctx, key); err == nil && cached != nil {
			return cached, nil
		}
		resp, err := next(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(resp.ToolCalls()) == 0 && resp.FinishReason.Reason == "stop" {
			_ = c.Put(ctx, key, resp)
		}
		return resp, nil
	}
}
