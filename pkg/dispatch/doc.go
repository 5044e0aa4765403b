/*
Package dispatch is the orchestrating core: it takes one inbound event,
resolves it against the route table, applies the policy gate, runs or starts
a conversation step under the user's lock, and invokes plain handlers.

Every fault raised by a handler or step is caught here, reported through
ports.ErrorReporter and answered with a short generic notice; the delivery
loop calling Dispatch never sees a panic or an error for expected paths.
*/
package dispatch
