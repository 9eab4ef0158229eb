// Package service turns polymarker requests into jobs and answers their status.
//
// Overview
// A Service is created from a validated model.Config. Submit creates one Job
// per target sequence, each bound to a tool.Tool. The tool writes the
// pipeline inputs into the job directory and runs the pipeline, either
// blocking the caller or in the background. Background processes are
// registered in a task.Manager before they are spawned.
//
// Data flow:
//
//   Service              tool.System            task.Manager        task.Runner
//      |                     |                       |                   |
//   Submit -> ParseParameters|                       |                   |
//      | Run() ------------->| Register ------------>|                   |
//      |                     | Start() ------------------------------->  | os/exec.Start
//      |                     |                       |<--- WaitChan -----| (process exits)
//      |                     |<--- finish (callback) |                   |
//      |                     | exit_status.json, results                 |
//   Status/Refresh -------->| Status(update)         |                   |
//
// The service holds one reference of the manager, each background job
// another. Release drops the service reference, teardown (poller shutdown,
// final ledger writes, closing the ledger) runs after the last job ended.
//
// Invariants:
//   - Job status only moves forward, terminal statuses are sticky.
//   - A job is registered before its process is spawned.
//   - Recover processes ids in order, a failure is reported by its job.
//   - Status of a job can be answered by a later process through the ledger
//     and the exit status file of the job directory.
package service
