package noisemap

import "errors"

// ErrInputShape reports a geometry that is not of the required type after
// explode, e.g. the decomposer receiving something other than a polygon.
// Fatal for the road currently being processed.
var ErrInputShape = errors.New("noisemap: input geometry is not of the required type")

// ErrDegenerateGeometry reports an intersection that did not resolve to a
// single point even after the disambiguation policy. Non-fatal: the ray
// simply stops reflecting.
var ErrDegenerateGeometry = errors.New("noisemap: intersection did not resolve to a single point")

// ErrNumericError reports a floating point domain error in the acoustic
// attenuation formula (log10 of a non-positive slant distance). Recovered
// the same way as ErrDegenerateGeometry.
var ErrNumericError = errors.New("noisemap: numeric error computing incident level")

// ErrExternal wraps a failure surfaced by the fetch or persistence
// collaborator, and a context cancellation noticed between roads. Opaque
// to the core; it is only ever propagated, never inspected.
var ErrExternal = errors.New("noisemap: external collaborator failed")
