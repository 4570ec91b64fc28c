// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth authenticates the caller of a mutating request.

# Signed Requests

A caller proves control of an account by signing each request with its
secp256k1 key. Three headers carry the proof:

	X-Caller            0x-hex account address
	X-Caller-Timestamp  unix seconds, within MaxSkew of the server clock
	X-Caller-Signature  0x-hex 65-byte signature

The signature is an EIP-191 personal-sign over the message

	METHOD PATH TIMESTAMP SHA256HEX(body)

so any wallet can produce it. Changing the method, path, timestamp, or a
single byte of the body invalidates the signature.

# Replays

A signed request stays valid for the whole MaxSkew window, so a Guard
remembers every request it accepts, keyed by caller and signed digest, until
that window closes. Resending one, even with the signature re-encoded, fails
with ErrReplayed. The Guard holds at most its capacity of live entries and
answers ErrBusy rather than forget one early. Clients sending the same
request twice must sign it with a new timestamp.

# Usage

Handlers call Guard.Authenticate before parsing the body:

	guard := auth.NewGuard(auth.DefaultGuardCapacity)
	caller, err := guard.Authenticate(r, time.Now())
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}

Clients and tests sign with SignRequest.
*/
package auth
