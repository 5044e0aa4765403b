/*
Package ports defines the driven ports (interfaces) of the relay engine.

These interfaces decouple the dispatch core from the chat platform, the
storage backend and the error reporting sink.

# Key Interfaces

  - SessionStore: holds the per-user conversation session.
  - DistributedLocker: serializes one user's events across replicas.
  - AdminChecker: answers "is this user an admin of this chat" for AdminOnly routes.
  - Notifier: sends ephemeral notices (hijack, denial, failure) to the actor.
  - ErrorReporter: receives handler faults.
*/
package ports
