// Package crypt encrypts and decrypts the string leaves of configuration
// documents.
//
// [EncryptConfig] reuses the ciphertext already stored in a reference
// document whenever it still decrypts to the same plaintext, so that
// re-encrypting an unchanged secrets file leaves it byte-for-byte stable
// under version control.
package crypt
