package storage

import (
	"sort"
	"strings"
)

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// GlobEscape quotes the redis glob metacharacters in s.
func GlobEscape(s string) string {
	return globEscaper.Replace(s)
}

// Dedupe sorts keys and drops repeats; SCAN may return a key more than once.
func Dedupe(keys []string) []string {
	if len(keys) == 0 {
		return keys
	}
	sort.Strings(keys)
	out := keys[:1]
	for _, k := range keys[1:] {
		if k != out[len(out)-1] {
			out = append(out, k)
		}
	}
	return out
}

// Namespace scopes keys of one named store inside a shared redis keyspace.
// The zero Namespace leaves keys untouched.
type Namespace string

// NewNamespace returns the namespace for a store name.
func NewNamespace(name string) Namespace {
	if name == "" {
		return ""
	}
	return Namespace(name + ":")
}

// Key returns the stored form of key.
func (n Namespace) Key(key string) string {
	return string(n) + key
}

// Match returns the SCAN pattern for keys of this namespace starting with prefix.
func (n Namespace) Match(prefix string) string {
	return GlobEscape(string(n)+prefix) + "*"
}

// Strip removes the namespace from scanned keys in place, dropping any key
// that does not carry it.
func (n Namespace) Strip(keys []string) []string {
	if n == "" {
		return keys
	}
	out := keys[:0]
	for _, k := range keys {
		if rest, ok := strings.CutPrefix(k, string(n)); ok {
			out = append(out, rest)
		}
	}
	return out
}
