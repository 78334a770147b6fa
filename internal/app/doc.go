// Package app is the composition root. It owns the application lifecycle:
// logger setup, profile loading, store opening, and the choice between a
// one-shot extraction and serve mode.
package app
