// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/astro-strike/ciphertext"
	"github.com/danielhkuo/astro-strike/models"
)

func TestHTTPRelayer(t *testing.T) {
	var gotDecryption DecryptionRequest
	var gotWeight WeightRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/decryptions":
			json.NewDecoder(r.Body).Decode(&gotDecryption)
			w.WriteHeader(http.StatusAccepted)
		case "/user-decryptions":
			json.NewDecoder(r.Body).Decode(&gotWeight)
			json.NewEncoder(w).Encode(WeightResponse{Weight: 42, Signature: []byte{0xaa}})
		default:
			http.Error(w, "no such route", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := NewHTTPRelayer(srv.URL + "/")
	ctx := context.Background()

	req := DecryptionRequest{
		Token:       "tok",
		PoolID:      "p1",
		Ciphertexts: [models.NumChoices]ciphertext.Ciphertext{{1}, {2}, {3}},
	}
	if err := r.SubmitDecryption(ctx, req); err != nil {
		t.Fatalf("SubmitDecryption() error = %v", err)
	}
	if gotDecryption.Token != "tok" || string(gotDecryption.Ciphertexts[2]) != "\x03" {
		t.Errorf("relayer received %+v", gotDecryption)
	}

	resp, err := r.DecryptWeight(ctx, WeightRequest{PoolID: "p1", Participant: alice, Ciphertext: ciphertext.Ciphertext{7}})
	if err != nil {
		t.Fatalf("DecryptWeight() error = %v", err)
	}
	if resp.Weight != 42 || gotWeight.Participant != alice {
		t.Errorf("DecryptWeight() = %+v, relayer saw %+v", resp, gotWeight)
	}
}

func TestHTTPRelayer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "coprocessor overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPRelayer(srv.URL).SubmitDecryption(context.Background(), DecryptionRequest{Token: "tok"})
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("error = %v, want status and body", err)
	}
}
