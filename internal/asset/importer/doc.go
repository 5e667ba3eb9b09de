// Package importer converts decoded Aseprite files into detached project
// subtrees.
//
// A sprite becomes one Sprite node. Its layers follow in file order (bottom
// to top), nested by child level: group layers become Group nodes and image
// layers become Layer nodes holding one Frame per cel. Tags become Group
// nodes with role "animation" appended after the layers. Cel pixels are
// stored in a blob.Store and referenced from each Frame by content key, so
// linked cels share one blob.
//
// Decoded results are cached by the xxhash digest of the input bytes.
package importer
