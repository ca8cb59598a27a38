// Package face compares two face images by extracting a fixed-length
// descriptor from each and measuring how far apart they are. Lower distance
// means more likely the same person
package face

import (
	"errors"
	"math"
)

var (
	// ErrNoFaceDetected means the pipeline found zero faces in an input
	// image. Callers must fail the comparison instead of treating this as
	// some degenerate distance
	ErrNoFaceDetected = errors.New("no face detected in image")

	ErrBadImage = errors.New("image could not be decoded")
)

// DescriptorSize is fixed by the extraction model. Descriptors from different
// models or model versions are not comparable
const DescriptorSize = 128

// DefaultMatchThreshold is the Euclidean distance below which two
// descriptors count as the same person
const DefaultMatchThreshold = 0.6

// Comparator measures the distance between the primary faces of a freshly
// captured image (base64, optionally with a data-URL prefix) and a stored
// enrollment image (raw bytes)
type Comparator interface {
	Compare(captured string, stored []byte) (distance float64, err error)
}

// EuclideanDistance returns the straight-line distance between two
// descriptors of equal length
func EuclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}
