// Package password implements credential hashing and verification.
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Stored bcrypt hashes ($2a$/$2b$/$2y$) verify transparently so accounts
// migrated from older systems keep working; [Hasher.NeedsUpgrade] reports
// true for them (and for argon2id hashes with weaker parameters) so the
// caller can rehash on the next successful login.
//
// This package owns hashing and verification only. Password policy and
// storage belong to the caller; plaintext never leaves the call stack.
package password
