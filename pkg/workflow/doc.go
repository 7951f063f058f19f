/*
Package workflow drives the sketch pipeline: upload, select, analyze,
regenerate and the improvement chain.

The Orchestrator owns the single workflow State. Each networked step checks its
local preconditions first and never reaches the backend when they fail. It then
issues exactly one request and commits the result to the state that is current
when the response arrives. A failed step leaves the state untouched.

Committed states are persisted (when a persistence adapter is configured) and
then handed to the registered listeners.
*/
package workflow
