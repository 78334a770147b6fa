// Package classify decides which serialized field dictionaries look like
// game entities. Matchers are registered by kind; each scores an object by
// the shape of its fields and the highest-scoring kind above its configured
// threshold wins.
package classify
