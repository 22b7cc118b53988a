package infra

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"capability-gateway/config"
	"capability-gateway/internal/domain"
)

// newKeyProtectTestServer はIAMトークンエンドポイント付きのテストサーバを起動し、
// それを指すクライアントを返す。
func newKeyProtectTestServer(t *testing.T, handler http.HandlerFunc) (*KeyProtectClient, *int) {
	t.Helper()
	tokenFetches := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenFetches++
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing token form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != iamAPIKeyGrantType {
			t.Errorf("want apikey grant type, got %q", got)
		}
		if got := r.PostForm.Get("apikey"); got != "test-api-key" {
			t.Errorf("want apikey test-api-key, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/api/v2/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("want Authorization Bearer test-token, got %q", got)
		}
		if got := r.Header.Get("Bluemix-Instance"); got != "test-instance" {
			t.Errorf("want Bluemix-Instance test-instance, got %q", got)
		}
		handler(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cli := NewKeyProtectClient(&config.Config{
		KeyProtectAPIKey:     "test-api-key",
		KeyProtectInstanceID: "test-instance",
		KeyProtectURL:        srv.URL,
		IAMTokenURL:          srv.URL + "/token",
	})
	return cli, &tokenFetches
}

func TestKeyProtectClient_ListKeys(t *testing.T) {
	cli, _ := newKeyProtectTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v2/keys" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "10" || q.Get("offset") != "5" {
			t.Errorf("unexpected paging query: %v", q)
		}
		if got := q["state"]; len(got) != 2 || got[0] != "1" || got[1] != "2" {
			t.Errorf("want state codes [1 2], got %v", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"metadata": map[string]any{"collectionType": keyCollectionType, "collectionTotal": 27},
			"resources": []map[string]any{
				{"id": "key-1", "name": "root-1", "extractable": false, "state": 1,
					"keyVersion": map[string]any{"id": "version-a"}},
				{"id": "key-2", "name": "std-1", "extractable": true, "state": 2},
			},
		})
	})

	records, total, err := cli.ListKeys(context.Background(), 10, 5,
		[]domain.KeyState{domain.KeyStateActive, domain.KeyStateSuspended})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 27 {
		t.Errorf("want total 27, got %d", total)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 records, got %d", len(records))
	}
	if records[0].Type != domain.KeyTypeRoot || records[0].KeyVersion != "version-a" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].Type != domain.KeyTypeStandard || records[1].State != domain.KeyStateSuspended {
		t.Errorf("unexpected second record: %+v", records[1])
	}
}

func TestKeyProtectClient_CreateKey(t *testing.T) {
	cli, _ := newKeyProtectTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v2/keys" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body keyCollection
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if body.Metadata.CollectionType != keyCollectionType {
			t.Errorf("want collection type %s, got %s", keyCollectionType, body.Metadata.CollectionType)
		}
		if len(body.Resources) != 1 || body.Resources[0].Name != "new-root" {
			t.Fatalf("unexpected resources: %+v", body.Resources)
		}
		if body.Resources[0].Extractable {
			t.Error("root key must be requested as non-extractable")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"metadata": map[string]any{"collectionType": keyCollectionType, "collectionTotal": 1},
			"resources": []map[string]any{
				{"id": "created-id", "name": "new-root", "extractable": false, "state": 1},
			},
		})
	})

	rec, err := cli.CreateKey(context.Background(), domain.CreateKeyRequest{
		Name: "new-root",
		Type: domain.KeyTypeRoot,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != "created-id" || rec.Type != domain.KeyTypeRoot {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestKeyProtectClient_WrapKey(t *testing.T) {
	cli, _ := newKeyProtectTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/keys/key-1/actions/wrap" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body wrapRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if body.Plaintext != "cGxhaW4=" {
			t.Errorf("want plaintext cGxhaW4=, got %s", body.Plaintext)
		}
		if len(body.AAD) != 1 || body.AAD[0] != "tenant-a" {
			t.Errorf("unexpected aad: %v", body.AAD)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"ciphertext": "opaque-blob",
			"keyVersion": map[string]any{"id": "version-1"},
		})
	})

	env, err := cli.WrapKey(context.Background(), "key-1", "cGxhaW4=", []string{"tenant-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Ciphertext != "opaque-blob" || env.KeyVersion != "version-1" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestKeyProtectClient_UnwrapKey_PassesKeyVersionUnmodified(t *testing.T) {
	cli, _ := newKeyProtectTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/keys/key-1/actions/unwrap" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body wrapRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if body.Ciphertext != "opaque-blob" {
			t.Errorf("want ciphertext opaque-blob, got %s", body.Ciphertext)
		}
		if body.KeyVersion == nil || body.KeyVersion.ID != "version-1" {
			t.Errorf("want keyVersion version-1, got %+v", body.KeyVersion)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"plaintext": "cGxhaW4="})
	})

	plaintext, version, err := cli.UnwrapKey(context.Background(), "key-1", "opaque-blob", nil, "version-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plaintext != "cGxhaW4=" {
		t.Errorf("want plaintext cGxhaW4=, got %s", plaintext)
	}
	if version != "version-1" {
		t.Errorf("want version version-1, got %s", version)
	}
}

func TestKeyProtectClient_GetKey_EmptyCollectionIsNotFound(t *testing.T) {
	cli, _ := newKeyProtectTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"metadata":  map[string]any{"collectionTotal": 0},
			"resources": []any{},
		})
	})

	_, err := cli.GetKey(context.Background(), "missing")
	var backendErr *domain.BackendError
	if !errors.As(err, &backendErr) || backendErr.Status != http.StatusNotFound {
		t.Fatalf("want BackendError 404, got %v", err)
	}
}

func TestKeyProtectClient_Non2xxBecomesBackendError(t *testing.T) {
	cli, _ := newKeyProtectTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"resources":[{"errorMsg":"unauthorized"}]}`, http.StatusUnauthorized)
	})

	_, err := cli.GetKey(context.Background(), "key-1")
	var backendErr *domain.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("want BackendError, got %T: %v", err, err)
	}
	if backendErr.Status != http.StatusUnauthorized {
		t.Errorf("want status 401, got %d", backendErr.Status)
	}
}

func TestKeyProtectClient_DeleteKey_Force(t *testing.T) {
	cli, _ := newKeyProtectTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v2/keys/key-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("force") != "true" {
			t.Errorf("want force=true, got %s", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := cli.DeleteKey(context.Background(), "key-1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestKeyProtectClient_IAMTokenIsReused(t *testing.T) {
	cli, tokenFetches := newKeyProtectTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"resources": []map[string]any{{"id": "key-1", "extractable": false, "state": 1}},
		})
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := cli.GetKey(ctx, "key-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if *tokenFetches != 1 {
		t.Errorf("want token fetched once, got %d", *tokenFetches)
	}
}
