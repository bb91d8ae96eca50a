// Package testutil provides deterministic fixtures for corestore tests and
// benchmarks.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	dk := rng.DiscoveryKey()
//	block := rng.Bytes(1024)
//
// # Populated Storage
//
//	dks, err := testutil.Populate(ctx, s, rng, testutil.Fixture{Cores: 8, Blocks: 100})
package testutil
