// Package scan defines scan categories and the Result model that every
// backend run produces, plus the Aggregate view over one orchestration
// call. Result.ToStructured is the stable exchange format handed to
// report and integration sinks.
package scan
