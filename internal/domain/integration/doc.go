// Package integration contains the Integration bounded context.
// This context keeps local leads in step with an external kanban board (Trello).
//
// Key concepts:
//   - ExternalCard: immutable snapshot of a board card taken at fetch time
//   - SyncConfiguration: per-tenant credentials, list mappings and checkpoint
//   - Lead: the local record projected from a card, unique per (tenant, external_id)
//   - SyncRun: in-memory counters, state and dedup set for one reconciliation run
//   - BoardClient: port for reading cards and managing webhooks on the board
//
// Card text is turned into structured attributes by ExtractFields, lists are
// classified by ResolveList and collaborators are matched to users by ResolveMember.
// All three are pure functions.
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
