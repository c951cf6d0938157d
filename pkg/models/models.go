// Package models loads the four pretrained bundles the detection pipeline
// needs: face detector, 68-point landmarks, recognition and expressions.
package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Bundle names, in load order.
const (
	Detector    = "face_detector"
	Landmark    = "face_landmark_68"
	Recognition = "face_recognition"
	Expression  = "face_expression"
)

// BundleNames lists every bundle.
var BundleNames = []string{Detector, Landmark, Recognition, Expression}

// Default file names per bundle.
const (
	DetectorFile    = "face_detection_yunet_2023mar.onnx"
	LandmarkFile    = "face_landmark_68.onnx"
	RecognitionFile = "face_recognition_sface_2021dec.onnx"
	ExpressionFile  = "emotion-ferplus-8.onnx"
)

// Sentinel errors.
var (
	ErrMissingFile = errors.New("models: file missing")
	ErrNoNets      = errors.New("models: no nets to load")
)

// Net is one loadable model bundle.
type Net interface {
	// Name is the bundle name (one of BundleNames).
	Name() string

	// Files lists the file names the bundle needs, relative to the base.
	Files() []string

	// Load reads the bundle from resolved local paths, in Files order.
	Load(ctx context.Context, paths []string) error

	// IsLoaded reports whether Load succeeded.
	IsLoaded() bool
}

// Manifest maps bundle name to its files.
func Manifest() map[string][]string {
	return map[string][]string{
		Detector:    {DetectorFile},
		Landmark:    {LandmarkFile},
		Recognition: {RecognitionFile},
		Expression:  {ExpressionFile},
	}
}

// Check reports which manifest files are missing from dir.
func Check(dir string) (missing []string, err error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("model dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("model dir %s is not a directory", dir)
	}
	manifest := Manifest()
	for _, name := range BundleNames {
		for _, f := range manifest[name] {
			if _, err := os.Stat(filepath.Join(dir, f)); errors.Is(err, os.ErrNotExist) {
				missing = append(missing, f)
			}
		}
	}
	return missing, nil
}

// LoadError reports which bundle failed.
type LoadError struct {
	Bundle string
	Err    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("models [%s]: %v", e.Bundle, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}
