// Package profile loads and validates the HCL extraction profile. The HCL
// surface is translated into a format-agnostic Model so the rest of the
// application never touches hcl types directly.
package profile
