// Package rip loads ripper-exported Unity bundle dumps. The heavy lifting
// (serialized-file parsing, texture decompression into raw texels) is done
// by the external ripping tool; this package only walks the JSON manifests
// it emits and resolves PPtr references between collections.
package rip
