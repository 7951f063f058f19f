/*
Package ports defines the driven ports (interfaces) of the Sketchy workflow.

These interfaces decouple the workflow core from external implementations,
allowing it to run against any durable key-value store, any backend transport
and any way of asking the user for files.

# Key Interfaces

  - RecordStore: durable key-value storage for the persisted workflow record (memory, file, Redis).
  - Backend: the upload/analyze/regenerate/improve API.
  - FilePicker: asks the user to re-supply files during session recovery.
*/
package ports
