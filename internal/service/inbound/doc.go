// Package inbound implements the intake pipeline for messages arriving on
// the telephony webhook: dedup, persistence, concurrent context enrichment
// and action evaluation, draft generation, and hand-off to the approval gate.
//
// The pipeline depends on interfaces defined in this package and should
// never import from api/. Repository implementations live in
// repository/postgres/.
package inbound
