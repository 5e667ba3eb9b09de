// Package blob provides a content-addressed store for pixel data.
//
// Keys are the lowercase hex xxhash64 digest of the content, so identical
// cels imported from different sprites share one entry and the archive
// writer can emit each blob once.
package blob
