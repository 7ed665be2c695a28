// Package models defines the core domain models for the settlement
// extraction pipeline.
//
// # Lifecycle
//
// Every entity here is created and discarded within a single request:
//   - Conversation / Message: the chat transcript as received from the boundary
//     layer, already normalized to one canonical shape
//   - ExtractedItem: one expense as emitted by the extraction model, before and
//     after currency normalization
//   - SettlementRecord: the final canonical settlement for one expense
//   - EvaluationResult: a scored comparison of produced vs. expected records
//
// Nothing in this package is persisted. Member identity maps are
// conversation-scoped and rebuilt per request (see internal/identity).
//
// # Design Principles
//
//  1. **One canonical shape**: the boundary layer accepts both a bare message
//     list and a {chatroom_name, members, messages} object, but everything past
//     ingress sees only Conversation
//  2. **Fixed serialization order**: SettlementRecord fields marshal in the
//     order place, payer, item, amount, participants, constants, ratios
//  3. **Avoid circular references**: members are referenced by id strings
package models
