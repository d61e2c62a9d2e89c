package data

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Schemes understood by the storage backends.
const (
	MemScheme        = "mem"
	FileScheme       = "file"
	RedisScheme      = "redis"
	RedisTLSScheme   = "rediss"
	ValkeyScheme     = "valkey"
	PostgresScheme   = "postgres"
	PostgresqlScheme = "postgresql"
)

// A DSN for conveniently handling a URI connection string.
type DSN string

func (d DSN) String() string {
	return string(d)
}

// Scheme returns the lower cased scheme of the DSN or an empty string when it has none.
func (d DSN) Scheme() string {
	idx := strings.Index(string(d), "://")
	if idx <= 0 {
		return ""
	}
	return strings.ToLower(string(d)[:idx])
}

func (d DSN) IsMem() bool {
	return d.Scheme() == MemScheme
}

func (d DSN) IsFile() bool {
	return d.Scheme() == FileScheme
}

func (d DSN) IsRedis() bool {
	scheme := d.Scheme()
	return scheme == RedisScheme || scheme == RedisTLSScheme
}

func (d DSN) IsValkey() bool {
	return d.Scheme() == ValkeyScheme
}

func (d DSN) IsPostgres() bool {
	scheme := d.Scheme()
	return scheme == PostgresScheme || scheme == PostgresqlScheme
}

// IsCache reports whether the DSN points at a key value server.
func (d DSN) IsCache() bool {
	return d.IsRedis() || d.IsValkey()
}

func (d DSN) ToURI() (*url.URL, error) {
	return url.Parse(string(d))
}

// Name returns the host component, used as the namespace of in-memory stores.
func (d DSN) Name() string {
	u, err := d.ToURI()
	if err != nil {
		return ""
	}
	return u.Host
}

// Path returns the filesystem path of a file:// DSN.
// Both file:///abs/path and file://relative/path are accepted.
func (d DSN) Path() string {
	if !d.IsFile() {
		return ""
	}
	raw := strings.TrimPrefix(string(d), string(d)[:len(FileScheme)+len("://")])
	if raw == "" {
		return ""
	}
	return filepath.Clean(raw)
}

// WithScheme swaps the scheme of the DSN, keeping the remainder intact.
func (d DSN) WithScheme(scheme string) DSN {
	idx := strings.Index(string(d), "://")
	if idx <= 0 {
		return d
	}
	return DSN(scheme + string(d)[idx:])
}

func (d DSN) GetQuery(key string) string {
	nuURI, err := d.ToURI()
	if err != nil {
		return ""
	}

	return nuURI.Query().Get(key)
}

// RemoveQuery strips the supplied query keys, used to drop options that
// drivers would reject.
func (d DSN) RemoveQuery(key ...string) DSN {
	nuURI, err := d.ToURI()
	if err != nil {
		return d
	}

	q := nuURI.Query()

	for _, k := range key {
		q.Del(k)
	}

	nuURI.RawQuery = q.Encode()

	return DSN(nuURI.String())
}
