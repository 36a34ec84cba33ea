// Package registry is the authoritative store of agent identities.
//
// It owns the seed arena (identities indexed by id, parent references as plain
// ids), the offspring lists that form the ancestry forest, the per-identity
// reproduction flag, the derived-wallet reverse index and the custody-owner
// book. Every mutation runs through a shared txn.Runtime and is gated by a
// signature over an authz digest:
//
//   - RegisterSelf is authorized by the platform signer.
//   - Reproduce and UpdateMemory are authorized by the identity's own derived
//     wallet; the custody owner cannot act for the agent.
//   - SetReproductionEnabled and TransferCustody are restricted to the custody
//     owner; the derived wallet cannot toggle its own reproduction.
package registry
