// Package funds keeps per-identity deposit ledgers and executes calls
// authorized by an identity's derived wallet.
//
// Every authorization binds the identity's current nonce. The nonce advances
// as soon as a proof verifies and is never rewound, so a captured proof is
// single-use whatever happens afterwards. Balances are debited before any
// external call runs; the call outcome is reported, not enforced.
package funds
