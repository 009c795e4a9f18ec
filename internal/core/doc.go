// Package core provides the business logic of the sheet sync engine.
//
// It pulls service-appointment rows from an upstream spreadsheet, normalizes
// them into canonical records and reconciles them into a relational store.
// Nothing in this package knows about HTTP or a concrete database; the web
// handlers, the CLI and the tests drive it through [Service].
//
// # Architecture
//
//   - Normalizer: [ParseDate], [NormalizeTime], [NormalizePhone] and friends
//     turn heterogeneous cell values into canonical Go values.
//   - Mapper: [StatusToCanonical], [StatusToDisplay], [LocationGroup] and
//     [RoleToCanonical] map free-text vocabulary onto closed sets.
//   - Registry: sheet definitions registered at init time (see the sheets
//     subpackage) or loaded from YAML with [LoadRegistryFile].
//   - Orchestrator: [Service.SyncSheet], [Service.SyncAll] and
//     [Service.ValidateAgainstStore].
//   - Run tracking: every run writes one [RunLog]; the newest summary is also
//     cached in process ([LastRunCache]).
//
// # Runs
//
// A run fetches one sheet, parses every row and applies each valid row in its
// own store transaction:
//
//	fetch -> parse -> (per row: lookup, diff, insert/update) -> run log
//
// Row failures are recorded as [RowError] values and never abort the run.
// A fetch failure ends the run as FAILED with zero counts, still logged.
// In full_reset mode the sheet's records are soft-deleted after a successful
// fetch and rebuilt from the rows.
//
// # Concurrency
//
// Runs for the same sheet key are serialized by a per-key lock. A process
// wide [RunLimiter] caps concurrently executing runs. Rows inside a run are
// applied by a bounded errgroup with mutex-guarded aggregation.
//
// # Errors
//
// Use [MapError] to convert internal errors to user-friendly messages:
//
//	msg := MapError(err)
//	fmt.Printf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
package core
