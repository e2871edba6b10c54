// Package fetch retrieves metadata documents from local paths and
// remote URLs and normalizes their content for parsing.
package fetch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-getter"

	"github.com/spatialworks/geocat/errors"
)

// DefaultTimeout bounds a single document retrieval.
const DefaultTimeout = 10 * time.Second

// Fetcher retrieves documents into a scratch directory.
type Fetcher struct {
	timeout time.Duration
}

// New creates a Fetcher. A non-positive timeout falls back to
// DefaultTimeout.
func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{timeout: timeout}
}

// Fetch retrieves src (file path, http(s) URL, or any other source
// go-getter understands) and returns its cleaned content.
func (f *Fetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "geocat-fetch-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating scratch directory")
	}
	defer os.RemoveAll(dir)

	dst := filepath.Join(dir, "document.xml")

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return nil, errors.Wrapf(err, "fetching %q", src)
	}

	content, err := os.ReadFile(dst)
	if err != nil {
		return nil, errors.Wrap(err, "reading fetched document")
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, errors.Wrapf(errors.ErrNoContent, "empty document at %q", src)
	}
	return CleanXML(content), nil
}

// CleanXML strips the XML declaration and any garbage before the first
// element so downstream parsers see a bare document. Content with no
// element at all is returned unchanged.
func CleanXML(content []byte) []byte {
	trimmed := bytes.TrimLeft(content, " \t\r\n\uFEFF")

	// Strip a leading XML declaration.
	if bytes.HasPrefix(trimmed, []byte("<?xml")) {
		if end := bytes.Index(trimmed, []byte("?>")); end >= 0 {
			trimmed = bytes.TrimLeft(trimmed[end+2:], " \t\r\n")
		}
	}

	// Drop anything before the first element start.
	if idx := bytes.IndexByte(trimmed, '<'); idx > 0 {
		trimmed = trimmed[idx:]
	}
	return trimmed
}
