// Package archive reads and writes packaged project archives.
//
// An archive is a zip file holding manifest.json and one blobs/<key> entry
// per referenced pixel blob. The manifest lists every node in preorder with
// archive-local identities starting at 1:
//
//	{
//	  "format": "spriteforge",
//	  "version": 2,
//	  "root": 1,
//	  "nodes": [
//	    {"id": 1, "kind": "group", "attrs": {"name": "project"}, "children": [2]},
//	    ...
//	  ]
//	}
//
// Encoding is deterministic: identities are renumbered in preorder, attribute
// keys and blob entries are sorted and every zip entry carries the same
// timestamp. Decoding a version 1 manifest (nodes tagged with "type" rather
// than "kind") migrates it in place; manifests newer than Version are
// rejected with ErrUnsupportedVersion.
package archive
