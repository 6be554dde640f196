// Package imagefile represents the image a user selected for edge detection.
//
// A File carries the raw bytes exactly as picked, plus metadata used for
// rendering the input side of the view: format, pixel dimensions, and the
// content type announced to the edge service.
//
// # File Picker Filter
//
// Accepts reports whether a file name passes the picker filter (.png, .jpg,
// .jpeg). The filter is advisory only. FromBytes and Open never reject a file
// because of its extension or content, and a file that cannot be decoded is
// still sent to the service unchanged.
//
// # Metadata
//
// Dimensions come from an orientation-aware decode, so a JPEG with an EXIF
// rotation reports the width and height a browser would display. When the
// bytes cannot be decoded, Decoded is false and the dimensions are zero.
package imagefile
