// Package keys provides the key and address primitives used by agentseed.
//
// Stable:
//   - Deterministic derivation of agent wallets from identity material
//     (DeriveAgentAddress, DeriveOffspringAddress).
//   - Proof signing compatible with package sigverify.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore). It is a local-first utility for
//     the CLI and is not part of the authorization protocol.
package keys
