// Package authz builds the authorization digests that gate every mutating
// operation.
//
// A digest is Keccak-256 over the tightly packed canonical fields of a
// request: hashes as 32 bytes, addresses as 20 bytes, integers as 32-byte
// big-endian words and text as raw UTF-8 bytes. Clients sign the digest with
// the EIP-191 personal-message prefix (see package sigverify).
package authz
