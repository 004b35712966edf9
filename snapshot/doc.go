// Package snapshot publishes versioned Store snapshots to a blobstore.
//
// Each Publish writes a new immutable blob and then flips a small pointer
// blob to it:
//
//	snapshots/00000000000000000001.vec
//	snapshots/00000000000000000002.vec.zst
//	CURRENT  ->  "snapshots/00000000000000000002.vec.zst 9f3a21c0\n"
//
// The pointer records the CRC32C of the snapshot blob as stored, so Restore
// detects a blob that was truncated or replaced behind its back. Readers
// only ever follow CURRENT, so a crash between the two writes leaves the
// previous snapshot in effect.
//
// With blobstore/s3.DDBCommitStore the pointer update is a DynamoDB
// conditional write, and two concurrent publishers cannot both win.
package snapshot
