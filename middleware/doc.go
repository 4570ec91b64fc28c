// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

	mux.HandleFunc("GET /pools", middleware.WithLogging(handler))

Logs one line per request with method, path, remote, status and duration_ms.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows GET, POST and OPTIONS with the caller signature headers.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

# Engine Errors

EngineError maps engine sentinels to statuses:

	ErrValidation          400
	ErrNotFound            404
	ErrAlreadyExists       409
	ErrState               409
	ErrPaymentMismatch     402
	ErrInvalidProof        422
	ErrDecryptionPending   409
	ErrDecryptionCallback  401
	ErrAlreadyClaimed      409
	ErrNotWinner           403
	ErrUnauthorized        401

Anything else is logged and answered with a bare 500.
*/
package middleware
