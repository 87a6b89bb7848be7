package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"rentfree/internal/auth"
	"rentfree/internal/directory"
	"rentfree/internal/solana"
	"rentfree/internal/solana/stub"
	"rentfree/internal/storage/memory"
)

const (
	testMint   = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	testWallet = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func newTestServer(t *testing.T, source *stub.AccountSource) *Server {
	t.Helper()

	svc := directory.New(directory.Options{
		Source:       source,
		Names:        memory.NewDisplayNameStore(),
		Mint:         testMint,
		MaxRooms:     100,
		LandlordTopN: 10,
		CacheTTL:     time.Minute,
	})
	return &Server{
		svc:          svc,
		logger:       log.New(io.Discard, "", 0),
		mint:         testMint,
		maxRooms:     100,
		landlordTopN: 10,
		cacheTTL:     time.Minute,
		useMemory:    true,
		started:      time.Now(),
	}
}

func TestHandleDirectory(t *testing.T) {
	source := stub.NewAccountSource()
	source.AddAccount(testMint, testWallet, 800)

	server := newTestServer(t, source)
	handler := server.routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/directory", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp DirectoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Mint != testMint {
		t.Errorf("expected mint %s, got %s", testMint, resp.Mint)
	}
	if resp.Cached {
		t.Error("first request should not be cached")
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Balance != "800" {
		t.Errorf("unexpected entries: %+v", resp.Entries)
	}

	// Second request within TTL is served from cache.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/directory", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Cached {
		t.Error("second request should be cached")
	}
}

func TestHandleDirectory_RateLimited(t *testing.T) {
	source := stub.NewAccountSource()
	source.Err = solana.ErrRateLimited

	server := newTestServer(t, source)

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/directory", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestHandleDirectory_UpstreamFailure(t *testing.T) {
	source := stub.NewAccountSource()
	source.Err = solana.ErrUpstream

	server := newTestServer(t, source)

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/directory", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("upstream")) {
		t.Error("internal error detail must not leak to the caller")
	}
}

func postDisplayName(t *testing.T, handler http.Handler, req DisplayNameRequest) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/display-name", bytes.NewReader(body)))
	return rec
}

func TestHandleDisplayName(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	wallet := base58.Encode(pub)
	message := auth.MessagePrefix + "alice"
	sig := ed25519.Sign(priv, []byte(message))

	server := newTestServer(t, stub.NewAccountSource())
	handler := server.routes()

	rec := postDisplayName(t, handler, DisplayNameRequest{
		WalletAddress: wallet,
		DisplayName:   "alice",
		Message:       message,
		Signature:     base64.StdEncoding.EncodeToString(sig),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp DisplayNameResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK || resp.WalletAddress != wallet || resp.DisplayName != "alice" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleDisplayName_StatusMapping(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	wallet := base58.Encode(pub)
	message := auth.MessagePrefix + "alice"
	sig := ed25519.Sign(priv, []byte(message))
	badSig := append([]byte(nil), sig...)
	badSig[0] ^= 0x01

	server := newTestServer(t, stub.NewAccountSource())
	handler := server.routes()

	tests := []struct {
		name     string
		req      DisplayNameRequest
		wantCode int
	}{
		{
			"missing wallet",
			DisplayNameRequest{DisplayName: "alice", Message: message, Signature: base64.StdEncoding.EncodeToString(sig)},
			http.StatusBadRequest,
		},
		{
			"bad prefix",
			DisplayNameRequest{WalletAddress: wallet, DisplayName: "alice", Message: "name: alice", Signature: base64.StdEncoding.EncodeToString(sig)},
			http.StatusBadRequest,
		},
		{
			"signature not base64",
			DisplayNameRequest{WalletAddress: wallet, DisplayName: "alice", Message: message, Signature: "!!!"},
			http.StatusBadRequest,
		},
		{
			"bad signature",
			DisplayNameRequest{WalletAddress: wallet, DisplayName: "alice", Message: message, Signature: base64.StdEncoding.EncodeToString(badSig)},
			http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postDisplayName(t, handler, tt.req)
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleHistory_NotConfigured(t *testing.T) {
	server := newTestServer(t, stub.NewAccountSource())

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?wallet="+testWallet, nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 when history is not configured, got %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	server := newTestServer(t, stub.NewAccountSource())

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "running" || resp.Mint != testMint || !resp.UseMemory {
		t.Errorf("unexpected status: %+v", resp)
	}
}

func TestCORSPreflight(t *testing.T) {
	server := newTestServer(t, stub.NewAccountSource())

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/display-name", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS origin header")
	}
}
