/*
Package session serializes access to per-user conversation sessions.

The Manager wraps a ports.SessionStore with a per-user lock so that a
read-mutate-write spanning a whole conversation step is atomic with respect
to other events of the same user. A ports.DistributedLocker can be added to
extend that guarantee across replicas.
*/
package session
