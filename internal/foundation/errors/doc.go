// Package errors provides the classified error primitives shared by the stage
// engine, the parallel worker layer and the CLI.
//
// A ClassifiedError carries a category, a severity and a retry strategy. Stages
// use the severity to decide between a forgiven and a failed outcome, the
// parallel layer uses the category as the failure kind tag it ships across the
// process boundary, and the CLI adapter maps categories to exit codes.
//
// Example usage:
//
//	err := errors.StageError("archive upload failed").
//		Warning().
//		WithContext("bucket", bucket).
//		WithCause(uploadErr).
//		Build()
package errors
