// Package models defines the ledger-resident record types of the expense
// protocol and their binary layouts.
//
// # Records
//
//   - ExpenseGroup: one per expense; holds the USD total, the per-person
//     share, the paid counter, and the collected balance (on its account).
//   - Participant: one per (expense, wallet) pair, created lazily by the
//     first successful payment. Its existence is the double-payment guard.
//   - PriceFeed: the external oracle's exchange-rate snapshot, read-only to
//     the protocol.
//
// # Wire format
//
// Every record starts with an 8-byte discriminator derived from its type name
// (layout.Tag), used by the read path as a cheap type filter before a full
// decode. Field order and widths are a compatibility seam: any change is a
// breaking format change.
//
// Amounts are integers end to end: USD in micro-units (1 USD = 1,000,000)
// and native currency in minor units (1 native = 1,000,000,000).
package models
