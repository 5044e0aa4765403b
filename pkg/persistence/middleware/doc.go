// Package middleware wraps a ports.SessionStore with storage-side behavior:
// encryption of workflow data at rest and redaction of sensitive values in
// session listings.
package middleware
