// Package vectorstore implements the structure-of-arrays vector buffer that
// owns every stored vector.
//
// A Buffer keeps three co-indexed arrays:
//
//	keys: [ k0 | k1 | k2 | ... | kn-1 ]
//	flat: [ v0[0] .. v0[d-1] | v1[0] .. v1[d-1] | ... ]
//	dim:  d
//
// Row i occupies flat[i*d : (i+1)*d]. Alongside the arrays the buffer keeps
// derived state: a key→row map for point lookups, the L2 norm of each row for
// cosine scoring, and the insertion sequence number of each row for stable
// tie-breaking. None of the derived state is persisted.
//
// A Buffer performs no synchronization. Callers serialize writers and
// exclude them from readers (see internal/guard).
package vectorstore
