// Package version contains the version, copyright, and license strings that
// the emitter interns into every initialization image it produces.
package version

// Current is the version of the compiler core, interned into every image's
// string table and reported at the offset recorded in the image header.
const Current = "apg-go/1.0.0"

// Copyright is interned into the image string table alongside Current and
// License.
const Copyright = "Copyright (c) 2026, apg-go contributors. All rights reserved."

// License is interned into the image string table. The emitted parser images
// carry no runtime obligations beyond what the grammar author chooses, but
// the generator's own provenance travels with the image for traceability.
const License = "BSD 2-Clause"
