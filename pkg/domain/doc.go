/*
Package domain contains the core types shared by the relay dispatch engine.

It is kept free of I/O and of external dependencies. Adapters and the core
packages (routing, policy, session, conversation, dispatch) all speak in these
types.

# Key Entities

  - Event: one normalized inbound platform event (command, callback, text, other).
  - Flags: access-control switches attached to a route.
  - Session: the per-user state of a multi-step conversation, anchored to a pinned menu message.
*/
package domain
