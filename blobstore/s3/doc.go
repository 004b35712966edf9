// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("caches/prod/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = cache.SaveBlob(ctx, store)
//
// # Features
//
//   - Ranged GETs for ReadAt and ReadRange
//   - Streaming multipart uploads for large snapshots
//   - CRC32C checksums on upload
//   - Automatic pagination for listing
//   - Optional DynamoDB-backed CURRENT pointer for concurrent writers
package s3
