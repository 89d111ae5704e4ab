// Package upload sends a file straight to an object store through a pre-signed URL
// and registers it with the backend afterwards.
//
// An upload attempt moves through a fixed sequence of states:
//
//	Idle → RequestingTarget → Transferring → Confirming → Succeeded
//
// Any non-terminal state may move to Failed. The returned *PhaseError names the
// phase that failed; a failure while confirming means the bytes may already be in
// the bucket without a backend record, and the error carries the bucket and object
// key so the object can be reconciled out of band. Nothing is retried or deleted
// automatically.
//
// Files are checked with Validate before any network call is made.
package upload
