// Package mem provides 64-byte aligned float32 allocation for the vector
// buffer's flat array, so every row scan starts on a cache-line boundary.
package mem
