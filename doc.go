// Package sipvalidate defines the validation report produced when checking a
// submission package before it is admitted into preservation storage.
//
// A package is a directory containing a descriptor (PACKAGE_NAME.xml) and a set of
// content files.  Validation itself is performed by the validation package; the types
// here are the stage-keyed record it fills in.  See individual packages for the
// descriptor accessor (descriptor), checksum engine (checksum), content listing
// (listing), and the external check adapters (xmlvalid, scan).
package sipvalidate
