// Package pkgprobe implements the PackageProber port over net/http: the
// on-demand availability, integrity, and checksum probes for the
// downloadable package hosted alongside the app.
package pkgprobe

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tmorling/credvault/internal/domain/model"
	"github.com/tmorling/credvault/internal/domain/port/driven"
)

// MinValidPackageSize is the minimum plausible size of a real package.
// Real packages run 5-20 MB; anything under 100 KiB is likely a placeholder
// or an error page.
const MinValidPackageSize = 100 * 1024

// zipMagic is the standard archive-format signature ("PK\x03\x04") every
// valid package starts with.
var zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// placeholderMarkers are textual fragments that identify an HTML or
// placeholder body masquerading as the package.
var placeholderMarkers = []string{"<!DOCTYPE", "<html", "PLACEHOLDER"}

// Compile-time interface satisfaction check.
var _ driven.PackageProber = (*Prober)(nil)

// Prober probes the package endpoint. Every request is cache-busted with a
// time-based query parameter and marked no-store, defeating caching at every
// layer including the offline gateway.
type Prober struct {
	client     *http.Client
	packageURL *url.URL
	now        func() time.Time
}

// New creates a Prober for the package hosted at packagePath under baseURL.
// The HTTP client carries an explicit 30s timeout so a hung probe is bounded.
func New(baseURL, packagePath string) (*Prober, error) {
	return NewWithClient(&http.Client{Timeout: 30 * time.Second}, baseURL, packagePath)
}

// NewWithClient creates a Prober with a custom http.Client. Intended for
// tests injecting an httptest server.
func NewWithClient(client *http.Client, baseURL, packagePath string) (*Prober, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse package base URL: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("package base URL %q has no host", baseURL)
	}

	return &Prober{
		client:     client,
		packageURL: base.ResolveReference(&url.URL{Path: packagePath}),
		now:        time.Now,
	}, nil
}

// bustedURL returns the package URL with a fresh cache-busting parameter.
func (p *Prober) bustedURL() string {
	u := *p.packageURL
	q := u.Query()
	q.Set("t", strconv.FormatInt(p.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// CheckAvailability classifies the hosted package. Network failures become
// PackageUnreachable; the error return is reserved for context cancellation.
func (p *Prober) CheckAvailability(ctx context.Context) (model.Availability, error) {
	resp, err := p.headOrGet(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return model.PackageUnreachable{Detail: "network error"}, nil
	}
	defer drainClose(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.PackageMissing{}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return model.PackageUnreachable{
			Detail: fmt.Sprintf("check returned status %d, availability uncertain", resp.StatusCode),
		}, nil
	}

	size, sizeKnown := declaredSize(resp)
	contentType := resp.Header.Get("Content-Type")

	// A missing or implausibly small declared size means the headers cannot
	// be trusted; validate the leading bytes instead.
	if !sizeKnown || size < MinValidPackageSize {
		return p.fallbackValidate(ctx, size, sizeKnown, contentType)
	}

	if isTextual(contentType) {
		return model.PackageInvalid{
			Reason:      "hosted file is not a valid package (HTML/text response detected)",
			Size:        size,
			SizeKnown:   true,
			ContentType: contentType,
		}, nil
	}

	if isArchive(contentType) {
		return model.PackageAvailable{Size: size, SizeKnown: true, ContentType: contentType}, nil
	}

	// Size is plausible but the content type is unexpected; soften to an
	// advisory rather than blocking the download.
	return model.PackageAvailable{
		Size:        size,
		SizeKnown:   true,
		ContentType: contentType,
		Advisory:    "package appears available (verify content-type if issues occur)",
	}, nil
}

// fallbackValidate reads the leading bytes of the package and inspects them
// for the archive signature and for HTML/placeholder markers.
func (p *Prober) fallbackValidate(ctx context.Context, size int64, sizeKnown bool, contentType string) (model.Availability, error) {
	leading, err := p.readLeadingBytes(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return model.PackageUnreachable{Detail: "unable to fetch package for validation"}, nil
	}

	head := leading
	if len(head) > 100 {
		head = head[:100]
	}
	for _, marker := range placeholderMarkers {
		if strings.Contains(string(head), marker) {
			return model.PackageInvalid{
				Reason:      "hosted file is not a valid package (HTML/text placeholder detected)",
				Size:        size,
				SizeKnown:   sizeKnown,
				ContentType: contentType,
			}, nil
		}
	}

	if !bytes.HasPrefix(leading, zipMagic) {
		return model.PackageInvalid{
			Reason:      "hosted file is not a valid package (missing archive signature)",
			Size:        size,
			SizeKnown:   sizeKnown,
			ContentType: contentType,
		}, nil
	}

	if sizeKnown && size < MinValidPackageSize {
		return model.PackageInvalid{
			Reason:      fmt.Sprintf("hosted file is too small to be a valid package (%s) - likely a placeholder", formatKB(size)),
			Size:        size,
			SizeKnown:   true,
			ContentType: contentType,
		}, nil
	}

	// Valid signature but no reliable size; best effort.
	return model.PackageAvailable{
		Size:        size,
		SizeKnown:   sizeKnown,
		ContentType: contentType,
		Advisory:    "package appears available (size unknown, signature valid)",
	}, nil
}

// FetchMetadata reads size, content type, and last-modified headers without
// downloading the body. Implausible metadata is reported in the Advisory
// field and never fails the probe.
func (p *Prober) FetchMetadata(ctx context.Context) (*model.PackageMetadata, error) {
	resp, err := p.headOrGet(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("fetch package metadata: %w", err)
	}
	defer drainClose(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch package metadata: unexpected status %d", resp.StatusCode)
	}

	meta := &model.PackageMetadata{
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	meta.Size, meta.SizeKnown = declaredSize(resp)

	if meta.SizeKnown && meta.Size < MinValidPackageSize {
		meta.Advisory = fmt.Sprintf("file is too small (%s) - likely a placeholder, not a real package", formatKB(meta.Size))
	} else if isTextual(meta.ContentType) {
		meta.Advisory = "file appears to be HTML/text, not a package - server may be returning an error page"
	}

	return meta, nil
}

// Checksum downloads the full package, re-validates the downloaded length,
// and returns the SHA-256 digest as a lowercase hex string.
func (p *Prober) Checksum(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.bustedURL(), nil)
	if err != nil {
		return "", fmt.Errorf("build checksum request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("fetch package: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch package: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("read package body: %w", err)
	}

	if int64(len(body)) < MinValidPackageSize {
		return "", fmt.Errorf("downloaded file is too small (%s) - not a valid package", formatKB(int64(len(body))))
	}

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// headOrGet issues a lightweight HEAD first and falls back to a full GET
// when HEAD is not supported by the transport or server.
func (p *Prober) headOrGet(ctx context.Context) (*http.Response, error) {
	u := p.bustedURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := p.client.Do(req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")

	return p.client.Do(req)
}

// readLeadingBytes fetches the first bytes of the package: a byte-range
// request for the signature first, then the first chunk of a full body when
// partial requests are not honored usefully.
func (p *Prober) readLeadingBytes(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.bustedURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", "bytes=0-3")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := p.client.Do(req)
	if err == nil && (resp.StatusCode == http.StatusPartialContent || resp.StatusCode == http.StatusOK) {
		defer resp.Body.Close()
		return io.ReadAll(io.LimitReader(resp.Body, 1024))
	}
	if resp != nil {
		drainClose(resp)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Range not supported; read the first chunk of a full fetch.
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, p.bustedURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err = p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1024))
}

func declaredSize(resp *http.Response) (int64, bool) {
	v := resp.Header.Get("Content-Length")
	if v == "" {
		return 0, false
	}
	size, err := strconv.ParseInt(v, 10, 64)
	if err != nil || size < 0 {
		return 0, false
	}
	return size, true
}

func isTextual(contentType string) bool {
	return strings.Contains(contentType, "text/html") || strings.Contains(contentType, "text/plain")
}

func isArchive(contentType string) bool {
	return strings.Contains(contentType, "application/vnd.android.package-archive") ||
		strings.Contains(contentType, "application/octet-stream")
}

func formatKB(size int64) string {
	return fmt.Sprintf("%.2f KB", float64(size)/1024)
}

// drainClose discards any unread body so the connection can be reused.
func drainClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
