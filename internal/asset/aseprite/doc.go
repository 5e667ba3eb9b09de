// Package aseprite decodes the Aseprite binary sprite format.
//
// Decode reads the header, every frame and the layer, cel, tag and palette
// chunks. Other chunk types (color profiles, user data, slices, external
// files and tilesets) are skipped. Tilemap layers and cels are rejected with
// a *ParseError naming the offending field.
//
// Pixel data is returned as decoded bytes in the file's color depth:
// 4 bytes per pixel for RGBA, 2 for grayscale and 1 for indexed images.
// Linked cels are resolved so that every Cel carries its own pixel slice;
// linked cels share the backing array of the cel they link to.
//
// Format reference: https://github.com/aseprite/aseprite/blob/main/docs/ase-file-specs.md
package aseprite
