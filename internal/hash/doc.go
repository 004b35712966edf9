// Package hash provides CRC32-Castagnoli (CRC32C) checksums.
//
// CRC32C is what S3 accepts as an upload checksum and what snapshot
// pointers record for the blob they reference. Go's hash/crc32 uses the
// SSE4.2 and ARM CRC instructions for this polynomial when available.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
