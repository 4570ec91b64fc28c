// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"crypto/ecdsa"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/astro-strike/models"
	"github.com/danielhkuo/astro-strike/testutil"
)

// serve runs h on req after setting alternating name/value path values.
func serve(h http.HandlerFunc, req *http.Request, pathValues ...string) *httptest.ResponseRecorder {
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func enterRequest(t *testing.T, env *testutil.Env, key *ecdsa.PrivateKey, poolID string, choice models.Choice, weight uint64) models.EnterPoolRequest {
	t.Helper()
	ct, prf := env.Encrypt(t, key, poolID, weight)
	return models.EnterPoolRequest{
		Choice:     uint8(choice),
		Ciphertext: "0x" + hex.EncodeToString(ct),
		Proof:      "0x" + hex.EncodeToString(prf),
		Payment:    "1000",
	}
}

// TestFullPoolWorkflow tests the complete end-to-end workflow:
// 1. Create pool
// 2. Three participants enter with encrypted weights
// 3. Settlement is refused while open
// 4. Settle after lock and deliver the coprocessor callback
// 5. Winners claim proportional prizes, the loser is refused
// 6. Verify the event log and treasury
func TestFullPoolWorkflow(t *testing.T) {
	env := testutil.NewEnv(t)
	pools := NewPoolHandler(env.Engine)
	settlements := NewSettlementHandler(env.Engine)
	treasury := NewTreasuryHandler(env.Engine)

	creator := testutil.NewAccount(t)
	alice := testutil.NewAccount(t)
	bob := testutil.NewAccount(t)
	carol := testutil.NewAccount(t)

	// Step 1: Create a pool
	req := testutil.SignedRequest(t, creator, env.Engine.Now(), "POST", "/pools", models.CreatePoolRequest{
		PoolID:          "launch",
		EntryFee:        "1000",
		DurationSeconds: 600,
	})
	w := serve(pools.CreatePool, req)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var created models.CreatePoolResponse
	testutil.AssertJSON(t, w, &created)
	if created.PoolID != "launch" || !created.LockTime.Equal(testutil.Epoch.Add(10*time.Minute)) {
		t.Fatalf("Step 1 - unexpected response %+v", created)
	}

	// Step 2: Enter
	entrants := []struct {
		key    *ecdsa.PrivateKey
		choice models.Choice
		weight uint64
	}{
		{alice, models.ChoiceNova, 40},
		{bob, models.ChoiceNova, 60},
		{carol, models.ChoicePulse, 50},
	}
	for i, e := range entrants {
		body := enterRequest(t, env, e.key, "launch", e.choice, e.weight)
		req := testutil.SignedRequest(t, e.key, env.Engine.Now(), "POST", "/pools/launch/entries", body)
		w := serve(pools.EnterPool, req, "id", "launch")
		if w.Code != http.StatusCreated {
			t.Fatalf("Step 2 - entrant %d failed: %d - %s", i, w.Code, w.Body.String())
		}
		var entry models.EntryView
		testutil.AssertJSON(t, w, &entry)
		if !entry.Exists || entry.Choice != e.choice.String() {
			t.Errorf("Step 2 - entry = %+v", entry)
		}
	}

	w = serve(pools.GetPlayerCount, testutil.MakeRequest("GET", "/pools/launch/player-count", nil, nil), "id", "launch")
	var players models.PlayerCountResponse
	testutil.AssertJSON(t, w, &players)
	if players.PlayerCount != 3 {
		t.Errorf("Step 2 - player count = %d", players.PlayerCount)
	}
	w = serve(pools.GetPickCounts, testutil.MakeRequest("GET", "/pools/launch/pick-counts", nil, nil), "id", "launch")
	var counts models.PickCountsResponse
	testutil.AssertJSON(t, w, &counts)
	if counts.PickCounts != [models.NumChoices]uint64{2, 1, 0} {
		t.Errorf("Step 2 - pick counts = %v", counts.PickCounts)
	}

	// Step 3: Totals and settlement are sealed while open
	w = serve(pools.GetTotals, testutil.MakeRequest("GET", "/pools/launch/totals", nil, nil), "id", "launch")
	testutil.AssertStatus(t, w, http.StatusConflict)
	req = testutil.SignedRequest(t, carol, env.Engine.Now(), "POST", "/pools/launch/settle", nil)
	w = serve(pools.Settle, req, "id", "launch")
	testutil.AssertStatus(t, w, http.StatusConflict)

	// Step 4: Settle after lock
	env.Lock()
	req = testutil.SignedRequest(t, carol, env.Engine.Now(), "POST", "/pools/launch/settle", nil)
	w = serve(pools.Settle, req, "id", "launch")
	testutil.AssertStatus(t, w, http.StatusAccepted)
	var settle models.SettleResponse
	testutil.AssertJSON(t, w, &settle)
	if settle.Phase != models.PhaseLocked || settle.RequestToken == "" {
		t.Fatalf("Step 4 - settle response = %+v", settle)
	}

	w = serve(pools.GetPool, testutil.MakeRequest("GET", "/pools/launch", nil, nil), "id", "launch")
	var view models.PoolView
	testutil.AssertJSON(t, w, &view)
	if view.Phase != models.PhaseLocked || !view.Pending {
		t.Errorf("Step 4 - pending pool view = %+v", view)
	}

	cb, err := env.Coproc.Fulfil(settle.RequestToken)
	if err != nil {
		t.Fatal(err)
	}
	callback := models.SettlementCallbackRequest{Sums: cb.Sums, Signature: "0x" + hex.EncodeToString(cb.Signature)}
	w = serve(settlements.Callback, testutil.MakeRequest("POST", "/settlements/"+cb.Token+"/callback", callback, nil), "token", cb.Token)
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &view)
	if view.Phase != models.PhaseSettled || view.WinningChoice == nil || *view.WinningChoice != "Nova" || view.WinnerCount != 2 {
		t.Fatalf("Step 4 - settled view = %+v", view)
	}

	// Replaying the callback is rejected
	w = serve(settlements.Callback, testutil.MakeRequest("POST", "/settlements/"+cb.Token+"/callback", callback, nil), "token", cb.Token)
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	w = serve(pools.GetTotals, testutil.MakeRequest("GET", "/pools/launch/totals", nil, nil), "id", "launch")
	var totals models.TotalsResponse
	testutil.AssertJSON(t, w, &totals)
	if totals.Totals != [models.NumChoices]uint64{100, 50, 0} {
		t.Errorf("Step 4 - totals = %v", totals.Totals)
	}

	// Step 5: Claims
	claims := []struct {
		key    *ecdsa.PrivateKey
		status int
		amount string
	}{
		{alice, http.StatusOK, "1200"},
		{bob, http.StatusOK, "1800"},
		{carol, http.StatusForbidden, ""},
		{alice, http.StatusConflict, ""},
	}
	for i, c := range claims {
		env.Clock.Advance(time.Second)
		req := testutil.SignedRequest(t, c.key, env.Engine.Now(), "POST", "/pools/launch/claim-prize", nil)
		w := serve(pools.ClaimPrize, req, "id", "launch")
		if w.Code != c.status {
			t.Fatalf("Step 5 - claim %d: got %d want %d - %s", i, w.Code, c.status, w.Body.String())
		}
		if c.amount == "" {
			continue
		}
		var po models.PayoutResponse
		testutil.AssertJSON(t, w, &po)
		if po.Amount != c.amount || po.Status != models.PayoutPaid {
			t.Errorf("Step 5 - claim %d payout = %+v", i, po)
		}
	}

	// Step 6: Event log and treasury
	w = serve(pools.GetEvents, testutil.MakeRequest("GET", "/pools/launch/events", nil, nil), "id", "launch")
	var events []models.EventView
	testutil.AssertJSON(t, w, &events)
	wantKinds := []string{
		models.EventPoolCreated,
		models.EventEntryPlaced, models.EventEntryPlaced, models.EventEntryPlaced,
		models.EventSettlementPending,
		models.EventPoolSettled,
		models.EventPrizeClaimed, models.EventPrizeClaimed,
	}
	if len(events) != len(wantKinds) {
		t.Fatalf("Step 6 - got %d events, want %d", len(events), len(wantKinds))
	}
	for i, kind := range wantKinds {
		if events[i].Kind != kind || events[i].Seq != int64(i+1) {
			t.Errorf("Step 6 - event %d = %s/%d, want %s/%d", i, events[i].Kind, events[i].Seq, kind, i+1)
		}
	}
	if events[1].Choice == nil || *events[1].Choice != "Nova" {
		t.Errorf("Step 6 - EntryPlaced should name the pick")
	}

	w = serve(treasury.Balance, testutil.MakeRequest("GET", "/treasury", nil, nil))
	var tr models.TreasuryResponse
	testutil.AssertJSON(t, w, &tr)
	if tr.Balance != "0" {
		t.Errorf("Step 6 - treasury = %s", tr.Balance)
	}
}

// TestPushRefundWorkflow settles a tied pool and refunds every entrant.
func TestPushRefundWorkflow(t *testing.T) {
	env := testutil.NewEnv(t)
	pools := NewPoolHandler(env.Engine)
	alice := testutil.NewAccount(t)
	bob := testutil.NewAccount(t)
	env.CreatePool(t, testutil.NewAccount(t), "tie", 1000)
	env.MustEnter(t, alice, "tie", models.ChoiceNova, 77)
	env.MustEnter(t, bob, "tie", models.ChoiceFlux, 77)
	env.Lock()
	env.Settle(t, "tie")

	w := serve(pools.GetPool, testutil.MakeRequest("GET", "/pools/tie", nil, nil), "id", "tie")
	var view models.PoolView
	testutil.AssertJSON(t, w, &view)
	if view.Phase != models.PhasePush || !view.PushAll {
		t.Fatalf("pool view = %+v", view)
	}

	req := testutil.SignedRequest(t, alice, env.Engine.Now(), "POST", "/pools/tie/claim-prize", nil)
	testutil.AssertStatus(t, serve(pools.ClaimPrize, req, "id", "tie"), http.StatusConflict)

	for _, key := range []*ecdsa.PrivateKey{alice, bob} {
		req := testutil.SignedRequest(t, key, env.Engine.Now(), "POST", "/pools/tie/claim-refund", nil)
		w := serve(pools.ClaimRefund, req, "id", "tie")
		testutil.AssertStatus(t, w, http.StatusOK)
		var po models.PayoutResponse
		testutil.AssertJSON(t, w, &po)
		if po.Amount != "1000" {
			t.Errorf("refund = %s, want 1000", po.Amount)
		}
	}
}

// TestEmptyPoolSettlesImmediately covers the no-entry push.
func TestEmptyPoolSettlesImmediately(t *testing.T) {
	env := testutil.NewEnv(t)
	pools := NewPoolHandler(env.Engine)
	env.CreatePool(t, testutil.NewAccount(t), "quiet", 1000)
	env.Lock()

	req := testutil.SignedRequest(t, testutil.NewAccount(t), env.Engine.Now(), "POST", "/pools/quiet/settle", nil)
	w := serve(pools.Settle, req, "id", "quiet")
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.SettleResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Phase != models.PhasePush || resp.RequestToken != "" {
		t.Errorf("settle response = %+v", resp)
	}
}
