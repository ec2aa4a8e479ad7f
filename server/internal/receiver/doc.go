// Package receiver is the single entry point for claims. REST handlers, the
// inbox watcher and the MCP server all hand claims to a Receiver, which
// picks the agentic or fallback pipeline, runs it and records the outcome
// in the store.
//
// After a claim is stored the Receiver evaluates alert rules, queues
// field-adjuster claims for physical inspection and notifies dashboard
// subscribers. Overrides go through the Receiver too, so alerts for an
// overridden claim are resolved.
package receiver
