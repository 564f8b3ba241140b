// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

func newDownloader(srv *httptest.Server, maxBytes int64) *Downloader {
	return &Downloader{
		Client:    srv.Client(),
		Policy:    httputil.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		UserAgent: "corpus-engine-test",
		MaxBytes:  maxBytes,
		Log:       zap.NewNop(),
	}
}

func job(t *testing.T, url string) types.FetchJob {
	t.Helper()
	return types.FetchJob{
		DocID:     0,
		Candidate: types.Candidate{SourceURL: url, Title: "t"},
		DestPath:  filepath.Join(t.TempDir(), "0.pdf"),
	}
}

func assertNoPartFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestFetchPublishesValidPDF(t *testing.T) {
	const body = "%PDF-1.7 content"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	j := job(t, srv.URL)
	res := newDownloader(srv, 0).Fetch(context.Background(), j)
	if !res.Success {
		t.Fatalf("Fetch failed: %+v", res)
	}
	data, err := os.ReadFile(j.DestPath)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(data) != body {
		t.Errorf("artifact = %q, want byte-complete %q", data, body)
	}
	assertNoPartFiles(t, filepath.Dir(j.DestPath))
}

func TestFetchRejectsBadMagic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not a pdf</html>")
	}))
	defer srv.Close()

	j := job(t, srv.URL)
	res := newDownloader(srv, 0).Fetch(context.Background(), j)
	if res.Success {
		t.Fatal("Fetch succeeded on non-PDF content")
	}
	if res.Reason != "bad_signature" {
		t.Errorf("reason = %q, want bad_signature", res.Reason)
	}
	if _, err := os.Stat(j.DestPath); !os.IsNotExist(err) {
		t.Error("final path exists despite failed validation")
	}
	assertNoPartFiles(t, filepath.Dir(j.DestPath))
}

func TestFetchRejectsDeclaredOversize(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Length", "2048")
		fmt.Fprint(w, strings.Repeat("x", 2048))
	}))
	defer srv.Close()

	j := job(t, srv.URL)
	res := newDownloader(srv, 1024).Fetch(context.Background(), j)
	if res.Success || res.Reason != "too_large" {
		t.Errorf("result = %+v, want too_large failure", res)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("oversize was retried %d times; validation failures are permanent", hits)
	}
	assertNoPartFiles(t, filepath.Dir(j.DestPath))
}

func TestFetchRejectsObservedOversize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flush forces chunked encoding: no declared length, oversize
		// only observable while streaming.
		fmt.Fprint(w, "%PDF")
		w.(http.Flusher).Flush()
		fmt.Fprint(w, strings.Repeat("x", 4096))
	}))
	defer srv.Close()

	j := job(t, srv.URL)
	res := newDownloader(srv, 1024).Fetch(context.Background(), j)
	if res.Success || res.Reason != "too_large" {
		t.Errorf("result = %+v, want too_large failure", res)
	}
	if _, err := os.Stat(j.DestPath); !os.IsNotExist(err) {
		t.Error("final path exists despite oversize stream")
	}
	assertNoPartFiles(t, filepath.Dir(j.DestPath))
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "%PDF-1.5 eventually fine")
	}))
	defer srv.Close()

	j := job(t, srv.URL)
	res := newDownloader(srv, 0).Fetch(context.Background(), j)
	if !res.Success {
		t.Fatalf("Fetch failed after transient errors: %+v", res)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Errorf("server hit %d times, want 3", hits)
	}
}

func TestCleanupStaleParts(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "7.pdf.deadbeef.part")
	keep := filepath.Join(dir, "7.pdf")
	for _, p := range []string{stale, keep} {
		if err := os.WriteFile(p, []byte("%PDF"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	CleanupStaleParts(dir, zap.NewNop())

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale .part file survived cleanup")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("published artifact removed by cleanup")
	}
}

func TestSinkSerializesConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	sink, err := OpenSink(path)
	if err != nil {
		t.Fatal(err)
	}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := sink.Append(types.FailureRecord{DocID: id, Reason: "x"}); err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != n {
		t.Fatalf("got %d lines, want %d", len(lines), n)
	}
	seen := map[int]bool{}
	for _, line := range lines {
		var rec types.FailureRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("torn line %q: %v", line, err)
		}
		if seen[rec.DocID] {
			t.Errorf("doc %d appended twice", rec.DocID)
		}
		seen[rec.DocID] = true
	}
}
