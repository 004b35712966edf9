// Package testutil provides testing utilities for vecache.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vec := make([]float32, 128)
//	rng.FillUniform(vec)           // uniform [0, 1)
//	unit := rng.UnitVectors(1000, 384)
//
// # Exact Search (Ground Truth)
//
//	want := testutil.ExactTopK(query, vectors, keys, k, distance.MetricL2)
package testutil
