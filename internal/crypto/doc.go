// Package crypto holds the vault's cryptographic primitives: master key
// derivation from a passphrase, authenticated encryption of individual
// passwords, and random password generation.
//
// The master key lives in locked, guarded memory for the lifetime of a
// session and is wiped by MasterKey.Destroy.
package crypto
