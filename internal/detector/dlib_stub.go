//go:build !dlib

package detector

import "fmt"

// NewDlibDetector reports that the binary was built without dlib support.
// Build with -tags dlib to enable it.
func NewDlibDetector(modelDir string) (Detector, error) {
	return nil, fmt.Errorf("built without dlib tag: %w", ErrBackendUnavailable)
}
