// Package searcher implements bounded top-k selection for scan results.
package searcher
