// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package testutil builds fully wired engines for tests.

NewEnv opens an in-memory SQLite database, creates the schema, and wires an
engine to an in-process coprocessor, a ledger payer that can be told to
fail, and a fake clock:

	env := testutil.NewEnv(t)
	alice := testutil.NewAccount(t)
	env.CreatePool(t, alice, "final", 1000)
	env.MustEnter(t, alice, "final", models.ChoiceNova, 40)
	env.Lock()
	pool := env.Settle(t, "final")

The BFV key is generated once per test binary.

Handler tests sign requests with SignedRequest and check responses with
AssertStatus and AssertJSON.
*/
package testutil
