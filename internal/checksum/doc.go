// Package checksum computes content hashes for snapshot identity and
// unchanged-file detection. Hashes are hex-encoded SHA-256 of the raw bytes;
// the loader compares them against the last recorded manifest hash to decide
// whether a file needs reloading.
package checksum
