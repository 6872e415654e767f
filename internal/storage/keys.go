package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ObjectKey builds the storage key for an upload:
// {namespace}/{unixMillis}-{random hex}_{sanitized original name}. The
// random component makes keys collision-resistant without coordination:
// concurrent same-millisecond uploads of the same file name still get
// distinct keys instead of overwriting each other's bytes.
func ObjectKey(namespace, originalName string, now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("%s/%d-%s_%s", namespace, now.UnixMilli(), hex.EncodeToString(b[:]), SanitizeName(originalName))
}

// SanitizeName makes a file name URL-safe: every byte outside
// [A-Za-z0-9.-] becomes '_' and runs of '_' collapse to one.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '-':
			b.WriteByte(c)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return b.String()
}
