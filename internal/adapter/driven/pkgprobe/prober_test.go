package pkgprobe

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmorling/credvault/internal/domain/model"
)

// fakePackage builds a byte payload that starts with the archive signature.
func fakePackage(size int) []byte {
	body := make([]byte, size)
	copy(body, zipMagic)
	for i := len(zipMagic); i < size; i++ {
		body[i] = byte(i % 251)
	}
	return body
}

func newTestProber(t *testing.T, handler http.Handler) (*Prober, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	prober, err := NewWithClient(srv.Client(), srv.URL, "/downloads/app.apk")
	require.NoError(t, err)
	return prober, srv
}

func TestNewRejectsBaseURLWithoutHost(t *testing.T) {
	_, err := New("/just/a/path", "/downloads/app.apk")
	assert.Error(t, err)
}

func TestCheckAvailabilityLargeArchiveIsAvailable(t *testing.T) {
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.android.package-archive")
		w.Header().Set("Content-Length", "8000000")
		w.WriteHeader(http.StatusOK)
	}))

	result, err := prober.CheckAvailability(context.Background())
	require.NoError(t, err)

	avail, ok := result.(model.PackageAvailable)
	require.True(t, ok, "expected PackageAvailable, got %T", result)
	assert.Equal(t, model.ProbeAvailable, result.Status())
	assert.Equal(t, int64(8000000), avail.Size)
	assert.True(t, avail.SizeKnown)
	assert.Empty(t, avail.Advisory)
}

func TestCheckAvailabilityTextualContentTypeIsInvalid(t *testing.T) {
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", "8000000")
		w.WriteHeader(http.StatusOK)
	}))

	result, err := prober.CheckAvailability(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ProbeInvalid, result.Status())
	assert.Contains(t, result.Message(), "HTML/text")
}

func TestCheckAvailabilitySmallHTMLBodyIsInvalid(t *testing.T) {
	// Declared size 50000 is below the plausibility threshold, forcing the
	// leading-bytes fallback, which finds an HTML placeholder.
	body := []byte("<!DOCTYPE html><html><body>coming soon</body></html>")
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "50000")
			return
		}
		_, _ = w.Write(body)
	}))

	result, err := prober.CheckAvailability(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ProbeInvalid, result.Status())
	assert.Contains(t, result.Message(), "placeholder")
}

func TestCheckAvailabilitySmallFileWithSignatureIsInvalid(t *testing.T) {
	body := fakePackage(2048)
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(body)
	}))

	result, err := prober.CheckAvailability(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ProbeInvalid, result.Status())
	assert.Contains(t, result.Message(), "too small")
	assert.Contains(t, result.Message(), "2.00 KB")
}

func TestCheckAvailabilityMissingSignatureIsInvalid(t *testing.T) {
	body := bytes.Repeat([]byte{0xFF}, 512)
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(body)
	}))

	result, err := prober.CheckAvailability(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ProbeInvalid, result.Status())
	assert.Contains(t, result.Message(), "archive signature")
}

func TestCheckAvailabilityUnknownSizeValidSignatureIsAdvisoryAvailable(t *testing.T) {
	body := fakePackage(512)
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// HEAD responses carry no Content-Length here, forcing the
		// leading-bytes fallback.
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(body)
	}))

	result, err := prober.CheckAvailability(context.Background())
	require.NoError(t, err)

	avail, ok := result.(model.PackageAvailable)
	require.True(t, ok, "expected PackageAvailable, got %T", result)
	assert.False(t, avail.SizeKnown)
	assert.Contains(t, avail.Advisory, "signature valid")
}

func TestCheckAvailabilityNotFoundIsMissing(t *testing.T) {
	prober, _ := newTestProber(t, http.NotFoundHandler())

	result, err := prober.CheckAvailability(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ProbeMissing, result.Status())
}

func TestCheckAvailabilityServerErrorIsUnreachable(t *testing.T) {
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	result, err := prober.CheckAvailability(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ProbeUnreachable, result.Status())
	assert.Contains(t, result.Message(), "500")
}

func TestCheckAvailabilityNetworkFailureIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := srv.Client()
	url := srv.URL
	srv.Close()

	prober, err := NewWithClient(client, url, "/downloads/app.apk")
	require.NoError(t, err)

	result, err := prober.CheckAvailability(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ProbeUnreachable, result.Status())
	assert.Contains(t, result.Message(), "network error")
}

func TestCheckAvailabilityCancelledContextReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "8000000")
	}))

	_, err := prober.CheckAvailability(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProbeRequestsCarryCacheBusterAndNoStore(t *testing.T) {
	var gotQuery, gotCacheControl string
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("t")
		gotCacheControl = r.Header.Get("Cache-Control")
		w.Header().Set("Content-Type", "application/vnd.android.package-archive")
		w.Header().Set("Content-Length", "8000000")
	}))

	_, err := prober.CheckAvailability(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, gotQuery, "cache-busting parameter missing")
	_, err = strconv.ParseInt(gotQuery, 10, 64)
	assert.NoError(t, err, "cache buster should be a millisecond timestamp")
	assert.Equal(t, "no-store", gotCacheControl)
}

func TestHeadFallsBackToGetWhenHeadRejected(t *testing.T) {
	// A server whose transport-level handling of HEAD fails is awkward to
	// simulate; a 404-on-HEAD server exercises the status path instead, so
	// here the fallback is driven through a client-side failure on HEAD only.
	var sawGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			sawGet = true
		}
		w.Header().Set("Content-Type", "application/vnd.android.package-archive")
		w.Header().Set("Content-Length", "8000000")
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodHead {
			return nil, fmt.Errorf("HEAD not supported")
		}
		return http.DefaultTransport.RoundTrip(r)
	})}

	prober, err := NewWithClient(client, srv.URL, "/downloads/app.apk")
	require.NoError(t, err)

	result, err := prober.CheckAvailability(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ProbeAvailable, result.Status())
	assert.True(t, sawGet)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestReadLeadingBytesHonorsRangeResponses(t *testing.T) {
	body := fakePackage(512)
	var sawRange bool
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			// No Content-Length forces the fallback validation.
			return
		}
		if rng := r.Header.Get("Range"); rng == "bytes=0-3" {
			sawRange = true
			w.Header().Set("Content-Range", fmt.Sprintf("bytes 0-3/%d", len(body)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(body[:4])
			return
		}
		_, _ = w.Write(body)
	}))

	result, err := prober.CheckAvailability(context.Background())
	require.NoError(t, err)

	assert.True(t, sawRange, "expected a byte-range request")
	assert.Equal(t, model.ProbeAvailable, result.Status())
}

func TestFetchMetadataReportsHeaders(t *testing.T) {
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.android.package-archive")
		w.Header().Set("Content-Length", "8000000")
		w.Header().Set("Last-Modified", "Tue, 15 Nov 2024 12:00:00 GMT")
	}))

	meta, err := prober.FetchMetadata(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(8000000), meta.Size)
	assert.True(t, meta.SizeKnown)
	assert.Equal(t, "application/vnd.android.package-archive", meta.ContentType)
	assert.Equal(t, "Tue, 15 Nov 2024 12:00:00 GMT", meta.LastModified)
	assert.Empty(t, meta.Advisory)
}

func TestFetchMetadataFlagsImplausiblySmallFile(t *testing.T) {
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2048")
	}))

	meta, err := prober.FetchMetadata(context.Background())
	require.NoError(t, err)

	assert.Contains(t, meta.Advisory, "too small")
	assert.Contains(t, meta.Advisory, "2.00 KB")
}

func TestFetchMetadataFlagsTextualContentType(t *testing.T) {
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Length", "8000000")
	}))

	meta, err := prober.FetchMetadata(context.Background())
	require.NoError(t, err)

	assert.Contains(t, meta.Advisory, "HTML/text")
}

func TestFetchMetadataErrorOnServerError(t *testing.T) {
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := prober.FetchMetadata(context.Background())
	assert.ErrorContains(t, err, "502")
}

func TestChecksumMatchesDigestAndIsDeterministic(t *testing.T) {
	body := fakePackage(MinValidPackageSize + 100)
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))

	sum := sha256.Sum256(body)
	want := hex.EncodeToString(sum[:])

	got1, err := prober.Checksum(context.Background())
	require.NoError(t, err)
	got2, err := prober.Checksum(context.Background())
	require.NoError(t, err)

	assert.Equal(t, want, got1)
	assert.Equal(t, got1, got2)
	assert.Len(t, got1, 64)
}

func TestChecksumRejectsSmallDownload(t *testing.T) {
	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(fakePackage(1024))
	}))

	_, err := prober.Checksum(context.Background())
	assert.ErrorContains(t, err, "too small")
}

func TestChecksumRejectsNonOKStatus(t *testing.T) {
	prober, _ := newTestProber(t, http.NotFoundHandler())

	_, err := prober.Checksum(context.Background())
	assert.ErrorContains(t, err, "404")
}

func TestChecksumCancelledContextReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prober, _ := newTestProber(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := prober.Checksum(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
