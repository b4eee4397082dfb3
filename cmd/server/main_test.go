package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reagentbank.io/internal/ledger"
	"reagentbank.io/internal/persistence/ledgerdb"
)

func TestIsLoopbackRemote(t *testing.T) {
	assert.True(t, isLoopbackRemote("127.0.0.1:5555"))
	assert.True(t, isLoopbackRemote("[::1]:5555"))
	assert.False(t, isLoopbackRemote("10.0.0.8:5555"))
	assert.False(t, isLoopbackRemote("not-an-ip"))
}

func TestDefaultEnableAdminHTTP(t *testing.T) {
	t.Setenv("DEPLOY_ENV", "production")
	assert.False(t, defaultEnableAdminHTTP())
	t.Setenv("DEPLOY_ENV", "dev")
	assert.True(t, defaultEnableAdminHTTP())
}

func TestAdminBank(t *testing.T) {
	store, err := ledgerdb.Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	owner := ledger.OwnerKey{Character: 7}
	require.NoError(t, store.Upsert(context.Background(), ledger.Entry{Owner: owner, ItemID: 2589, Category: ledger.CategoryCloth, Quantity: 60}))

	handler := func(w http.ResponseWriter, r *http.Request) { handleAdminBank(w, r, store, ledger.ModeIndividual) }

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/bank?character=7", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec := httptest.NewRecorder()
	handler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Owner   string       `json:"owner"`
		Entries []adminEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "character:7", body.Owner)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, uint32(60), body.Entries[0].Quantity)
	assert.Equal(t, ledger.CategoryCloth.String(), body.Entries[0].Category)

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/bank?character=7", nil)
	req.RemoteAddr = "192.168.1.5:4000"
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/bank", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
