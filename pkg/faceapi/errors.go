package faceapi

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNotLoaded is returned when detection runs before all model bundles are loaded.
	ErrNotLoaded = errors.New("faceapi: models not loaded")

	// ErrEmptyFrame is returned when there is no frame to analyze.
	ErrEmptyFrame = errors.New("faceapi: empty frame")

	// ErrInvalidOptions is returned for out-of-range detector options.
	ErrInvalidOptions = errors.New("faceapi: invalid options")

	// ErrEngineClosed is returned after Close.
	ErrEngineClosed = errors.New("faceapi: engine closed")
)

// Stage names a step of the detection pipeline.
type Stage string

const (
	StageDecode      Stage = "decode"
	StageDetect      Stage = "detect"
	StageLandmarks   Stage = "landmarks"
	StageExpressions Stage = "expressions"
	StageDescriptor  Stage = "descriptor"
)

// StageError wraps a failure with the pipeline stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("faceapi [%s]: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// WrapStage wraps err with stage context. A nil err stays nil.
func WrapStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
