// Package policy implements the access-control gate evaluated before every
// route invocation.
package policy
