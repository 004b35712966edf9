// Package distance provides the scoring functions used to rank stored vectors
// against a query.
//
// # Supported Metrics
//
//   - MetricL2: squared Euclidean distance; lower is better
//   - MetricCosine: cosine similarity dot(a,b) / (|a|*|b|); higher is better,
//     and 0 when either operand has zero norm
//
// The bulk forms (SquaredL2Batch, CosineBatch) scan a flat, row-major array
// of vectors without allocating, which is the hot path of every search.
//
// # Usage
//
//	dist := distance.SquaredL2(a, b)
//	sim := distance.Cosine(a, b)
//	better := distance.MetricCosine.Better(0.9, 0.8) // true
package distance
