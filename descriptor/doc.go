// Package descriptor contains facilities for reading package descriptors.
// A descriptor is a METS document named after its package (PACKAGE_NAME.xml) which
// declares, for every content file, a relative location and optionally a checksum and
// checksum type.
//
// This package assumes the descriptor has already passed schema validation; it
// extracts data rather than judging the document.  Beyond the file manifest, it
// exposes the agreement (account/project) and submitter identity, and the external
// provenance (PREMIS events and agents) recorded in the descriptor.
package descriptor
