package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// CacheMode selects how a document is judged unchanged since its last run.
type CacheMode string

const (
	// CacheByModTime skips a document whose artifact is newer than the source.
	CacheByModTime CacheMode = "mtime"
	// CacheByContent skips a document whose source digest matches the one
	// recorded in the manifest, as long as its artifact still exists.
	CacheByContent CacheMode = "content"
)

// ParseCacheMode validates a cache mode name.
func ParseCacheMode(s string) (CacheMode, error) {
	switch CacheMode(s) {
	case CacheByModTime, CacheByContent:
		return CacheMode(s), nil
	case "":
		return CacheByModTime, nil
	default:
		return "", fmt.Errorf("unknown cache key %q (want %q or %q)", s, CacheByModTime, CacheByContent)
	}
}

// DigestLookup returns the source digest recorded for a document by the last
// successful run.
type DigestLookup interface {
	LookupDigest(ctx context.Context, filename string) (string, bool, error)
}

// FileDigest returns the hex SHA-256 of the file at path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// upToDate reports whether the artifact of result can be reused.
func (p *Parser) upToDate(ctx context.Context, result *Result, source os.FileInfo) bool {
	artifact, err := os.Stat(result.ArtifactPath)
	if err != nil {
		return false
	}

	switch p.cacheMode {
	case CacheByContent:
		if p.digests == nil || result.SourceDigest == "" {
			return false
		}
		recorded, ok, err := p.digests.LookupDigest(ctx, result.Filename)
		if err != nil {
			p.logger.Warn("Digest lookup failed", zap.String("file", result.Filename), zap.Error(err))
			return false
		}
		return ok && recorded == result.SourceDigest
	default:
		return source.ModTime().Before(artifact.ModTime())
	}
}
