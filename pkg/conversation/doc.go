/*
Package conversation runs multi-step, menu-driven workflows.

A Workflow maps state names to StateFuncs. The Runner executes exactly one
step per event on a private copy of the session and reports an Outcome; the
dispatcher decides whether to persist or remove the session based on it.

Cancellation leaves the stored session untouched. Messages a step already
delivered to the user before the cancellation are not rolled back, so the
chat may briefly show a menu one step ahead of the stored state; the next
callback from that menu is then handled as a stale-menu resync.
*/
package conversation
