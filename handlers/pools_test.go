// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/astro-strike/auth"
	"github.com/danielhkuo/astro-strike/models"
	"github.com/danielhkuo/astro-strike/testutil"
)

func TestCreatePool_Errors(t *testing.T) {
	env := testutil.NewEnv(t)
	h := NewPoolHandler(env.Engine)
	creator := testutil.NewAccount(t)
	env.CreatePool(t, creator, "taken", 1000)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"non-numeric fee", models.CreatePoolRequest{PoolID: "p", EntryFee: "ten", DurationSeconds: 600}, http.StatusBadRequest},
		{"missing fee", models.CreatePoolRequest{PoolID: "p", DurationSeconds: 600}, http.StatusBadRequest},
		{"fee below minimum", models.CreatePoolRequest{PoolID: "p", EntryFee: "1", DurationSeconds: 600}, http.StatusBadRequest},
		{"duration too short", models.CreatePoolRequest{PoolID: "p", EntryFee: "1000", DurationSeconds: 60}, http.StatusBadRequest},
		{"duration overflows", models.CreatePoolRequest{PoolID: "p", EntryFee: "1000", DurationSeconds: 300 + 1<<55}, http.StatusBadRequest},
		{"duration max uint64", models.CreatePoolRequest{PoolID: "p", EntryFee: "1000", DurationSeconds: math.MaxUint64}, http.StatusBadRequest},
		{"bad id", models.CreatePoolRequest{PoolID: "a/b", EntryFee: "1000", DurationSeconds: 600}, http.StatusBadRequest},
		{"duplicate", models.CreatePoolRequest{PoolID: "taken", EntryFee: "1000", DurationSeconds: 600}, http.StatusConflict},
		{"fee bps too high", models.CreatePoolRequest{PoolID: "p", EntryFee: "1000", DurationSeconds: 600, FeeBps: 5000}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.SignedRequest(t, creator, env.Engine.Now(), "POST", "/pools", tt.body)
			testutil.AssertStatus(t, serve(h.CreatePool, req), tt.status)
		})
	}

	t.Run("unsigned", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/pools", models.CreatePoolRequest{PoolID: "p", EntryFee: "1000", DurationSeconds: 600}, nil)
		testutil.AssertStatus(t, serve(h.CreatePool, req), http.StatusUnauthorized)
	})

	t.Run("stale signature", func(t *testing.T) {
		then := env.Engine.Now().Add(-auth.MaxSkew - time.Second)
		req := testutil.SignedRequest(t, creator, then, "POST", "/pools", models.CreatePoolRequest{PoolID: "p", EntryFee: "1000", DurationSeconds: 600})
		testutil.AssertStatus(t, serve(h.CreatePool, req), http.StatusUnauthorized)
	})

	t.Run("body altered after signing", func(t *testing.T) {
		req := testutil.SignedRequest(t, creator, env.Engine.Now(), "POST", "/pools", models.CreatePoolRequest{PoolID: "p", EntryFee: "1000", DurationSeconds: 600})
		forged := testutil.MakeRequest("POST", "/pools", models.CreatePoolRequest{PoolID: "p", EntryFee: "100", DurationSeconds: 600}, nil)
		for _, k := range []string{auth.HeaderCaller, auth.HeaderTimestamp, auth.HeaderSignature} {
			forged.Header.Set(k, req.Header.Get(k))
		}
		testutil.AssertStatus(t, serve(h.CreatePool, forged), http.StatusUnauthorized)
	})

	t.Run("invalid json", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/pools", nil, nil)
		if err := auth.SignRequest(req, creator, env.Engine.Now()); err != nil {
			t.Fatal(err)
		}
		testutil.AssertStatus(t, serve(h.CreatePool, req), http.StatusBadRequest)
	})
}

func TestEnterPool_Errors(t *testing.T) {
	env := testutil.NewEnv(t)
	h := NewPoolHandler(env.Engine)
	alice := testutil.NewAccount(t)
	bob := testutil.NewAccount(t)
	env.CreatePool(t, testutil.NewAccount(t), "p1", 1000)

	valid := enterRequest(t, env, alice, "p1", models.ChoiceNova, 10)

	wrongPayment := valid
	wrongPayment.Payment = "999"
	badHex := valid
	badHex.Ciphertext = "0xzz"
	badProofHex := valid
	badProofHex.Proof = "nothex"
	badChoice := valid
	badChoice.Choice = 7
	noPayment := valid
	noPayment.Payment = ""

	tests := []struct {
		name   string
		asBob  bool
		pool   string
		body   models.EnterPoolRequest
		status int
	}{
		{"missing pool", false, "ghost", valid, http.StatusNotFound},
		{"wrong payment", false, "p1", wrongPayment, http.StatusPaymentRequired},
		{"missing payment", false, "p1", noPayment, http.StatusBadRequest},
		{"ciphertext not hex", false, "p1", badHex, http.StatusBadRequest},
		{"proof not hex", false, "p1", badProofHex, http.StatusBadRequest},
		{"invalid choice", false, "p1", badChoice, http.StatusBadRequest},
		{"proof bound to someone else", true, "p1", valid, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := alice
			if tt.asBob {
				key = bob
			}
			req := testutil.SignedRequest(t, key, env.Engine.Now(), "POST", "/pools/"+tt.pool+"/entries", tt.body)
			testutil.AssertStatus(t, serve(h.EnterPool, req, "id", tt.pool), tt.status)
		})
	}

	req := testutil.SignedRequest(t, alice, env.Engine.Now(), "POST", "/pools/p1/entries", valid)
	testutil.AssertStatus(t, serve(h.EnterPool, req, "id", "p1"), http.StatusCreated)
	env.Clock.Advance(time.Second)
	req = testutil.SignedRequest(t, alice, env.Engine.Now(), "POST", "/pools/p1/entries", valid)
	testutil.AssertStatus(t, serve(h.EnterPool, req, "id", "p1"), http.StatusConflict)

	env.Lock()
	late := enterRequest(t, env, bob, "p1", models.ChoicePulse, 10)
	req = testutil.SignedRequest(t, bob, env.Engine.Now(), "POST", "/pools/p1/entries", late)
	testutil.AssertStatus(t, serve(h.EnterPool, req, "id", "p1"), http.StatusConflict)
}

func TestGetEntry(t *testing.T) {
	env := testutil.NewEnv(t)
	h := NewPoolHandler(env.Engine)
	alice := testutil.NewAccount(t)
	env.CreatePool(t, testutil.NewAccount(t), "p1", 1000)
	env.MustEnter(t, alice, "p1", models.ChoiceFlux, 10)

	addr := testutil.Address(alice).Hex()
	w := serve(h.GetEntry, testutil.MakeRequest("GET", "/pools/p1/entries/"+addr, nil, nil), "id", "p1", "participant", addr)
	testutil.AssertStatus(t, w, http.StatusOK)
	var entry models.EntryView
	testutil.AssertJSON(t, w, &entry)
	if !entry.Exists || entry.Choice != "Flux" || entry.Participant != testutil.Address(alice) {
		t.Errorf("entry = %+v", entry)
	}

	other := testutil.Address(testutil.NewAccount(t)).Hex()
	w = serve(h.GetEntry, testutil.MakeRequest("GET", "/pools/p1/entries/"+other, nil, nil), "id", "p1", "participant", other)
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &entry)
	if entry.Exists {
		t.Error("stranger reported as entered")
	}

	w = serve(h.GetEntry, testutil.MakeRequest("GET", "/pools/p1/entries/bob", nil, nil), "id", "p1", "participant", "bob")
	testutil.AssertStatus(t, w, http.StatusBadRequest)
	w = serve(h.GetEntry, testutil.MakeRequest("GET", "/pools/ghost/entries/"+addr, nil, nil), "id", "ghost", "participant", addr)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestCancel_Handler(t *testing.T) {
	env := testutil.NewEnv(t)
	h := NewPoolHandler(env.Engine)
	creator := testutil.NewAccount(t)
	env.CreatePool(t, creator, "p1", 1000)

	req := testutil.SignedRequest(t, testutil.NewAccount(t), env.Engine.Now(), "POST", "/pools/p1/cancel", nil)
	testutil.AssertStatus(t, serve(h.Cancel, req, "id", "p1"), http.StatusUnauthorized)

	req = testutil.SignedRequest(t, creator, env.Engine.Now(), "POST", "/pools/p1/cancel", nil)
	w := serve(h.Cancel, req, "id", "p1")
	testutil.AssertStatus(t, w, http.StatusOK)
	var view models.PoolView
	testutil.AssertJSON(t, w, &view)
	if view.Phase != models.PhaseCancelled || !view.Cancelled {
		t.Errorf("view = %+v", view)
	}
	if !strings.Contains(view.LocksIn, "from now") {
		t.Errorf("locks_in = %q, want a relative time", view.LocksIn)
	}
}

func TestSettle_Pending(t *testing.T) {
	env := testutil.NewEnv(t)
	h := NewPoolHandler(env.Engine)
	s := NewSettlementHandler(env.Engine)
	env.CreatePool(t, testutil.NewAccount(t), "p1", 1000)
	env.MustEnter(t, testutil.NewAccount(t), "p1", models.ChoiceNova, 10)
	env.Lock()

	caller := testutil.NewAccount(t)
	req := testutil.SignedRequest(t, caller, env.Engine.Now(), "POST", "/pools/p1/settle", nil)
	testutil.AssertStatus(t, serve(h.Settle, req, "id", "p1"), http.StatusAccepted)
	env.Clock.Advance(time.Second)
	req = testutil.SignedRequest(t, caller, env.Engine.Now(), "POST", "/pools/p1/settle", nil)
	testutil.AssertStatus(t, serve(h.Settle, req, "id", "p1"), http.StatusConflict)

	w := serve(s.Pending, testutil.MakeRequest("GET", "/settlements/pending", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var pending []models.PendingSettlementView
	testutil.AssertJSON(t, w, &pending)
	if len(pending) != 1 || pending[0].PoolID != "p1" {
		t.Errorf("pending = %+v", pending)
	}

	bad := models.SettlementCallbackRequest{Sums: [models.NumChoices]uint64{10, 0, 0}, Signature: "0x" + strings.Repeat("00", 65)}
	w = serve(s.Callback, testutil.MakeRequest("POST", "/settlements/"+pending[0].Token+"/callback", bad, nil), "token", pending[0].Token)
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	bad.Signature = "not-hex"
	w = serve(s.Callback, testutil.MakeRequest("POST", "/settlements/"+pending[0].Token+"/callback", bad, nil), "token", pending[0].Token)
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}
