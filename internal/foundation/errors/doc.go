// Package errors provides the classified error primitives used across docgen.
//
// Every failure that reaches the CLI is expected to be a ClassifiedError (or to
// wrap one), so the CLI adapter can pick a log level and an exit status without
// string matching.
//
// Key features:
//   - ErrorCategory: broad classification (config, tool, git, storage, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - RetryStrategy: whether retrying can help
//   - ClassifiedError: structured error with category, severity, and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: exit code mapping and presentation
//
// Example usage:
//
//	err := errors.ToolError("doxygen exited with status 1").
//		WithContext("dir", dir).
//		WithContext("exit_code", 1).
//		WithCause(runErr).
//		Build()
package errors
