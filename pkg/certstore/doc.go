/*
Package certstore implements the Certificate Store (C1): per-group
persistence of the four trust-list sub-lists, a rejected list, and the
group's own certificate/key pair.

Store is the capability interface the rest of the core programs against;
FileStore backs it with the directory layout spec.md section 4.1
describes (trusted/certs, trusted/crl, issuer/certs, issuer/crl,
rejected/certs, own/certs, own/private, created directly under the root
directory passed to NewFileStore),
grounded on the teacher's bucket-per-concern layering in
pkg/storage/boltdb.go generalized from BoltDB buckets to filesystem
directories. MemStore backs the same interface in memory and is what
Clone returns: a transaction stages its trust-list changes against a
MemStore snapshot and never touches the filesystem until commit calls
SetTrustList on the live FileStore.
*/
package certstore
