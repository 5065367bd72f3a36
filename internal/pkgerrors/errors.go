// Package pkgerrors provides the closed error taxonomy shared by every
// job the engine runs.
package pkgerrors

import (
	"errors"
	"fmt"
)

// Code is one of the closed set of error codes a Job may end with.
type Code string

const (
	OutOfMemory             Code = "out-of-memory"
	NoNetwork               Code = "no-network"
	NotSupported            Code = "not-supported"
	InternalError           Code = "internal-error"
	GpgFailure              Code = "gpg-failure"
	PackageIDInvalid        Code = "package-id-invalid"
	PackageNotInstalled     Code = "package-not-installed"
	PackageNotFound         Code = "package-not-found"
	PackageAlreadyInstalled Code = "package-already-installed"
	PackageDownloadFailed   Code = "package-download-failed"
	GroupNotFound           Code = "group-not-found"
	DepResolutionFailed     Code = "dep-resolution-failed"
	FilterInvalid           Code = "filter-invalid"
	TransactionError        Code = "transaction-error"
	TransactionCancelled    Code = "transaction-cancelled"
	NoCache                 Code = "no-cache"
	RepoNotFound            Code = "repo-not-found"
	RepoConfigurationError  Code = "repo-configuration-error"
	RepoAlreadySet          Code = "repo-already-set"
	CannotRemoveSystem      Code = "cannot-remove-system-package"
	ProcessKill             Code = "process-kill"
	FailedInitialization    Code = "failed-initialization"
	FailedFinalise          Code = "failed-finalise"
	FailedConfigParsing     Code = "failed-config-parsing"
	CannotCancel            Code = "cannot-cancel"
	CannotGetFilelist       Code = "cannot-get-filelist"
	CannotFetchSource       Code = "cannot-fetch-source"
	NoLicenseAgreement      Code = "no-license-agreement"
	NoSpaceOnDevice         Code = "no-space-on-device"
	NotAuthorized           Code = "not-authorized"
	LocalInstallFailed      Code = "local-install-failed"
	FileConflicts           Code = "file-conflicts"
	FileNotFound            Code = "file-not-found"
	InstallRootInvalid      Code = "install-root-invalid"
	RepoNotAvailable        Code = "repo-not-available"
	PackageConflicts        Code = "package-conflicts"
	PackageFailedToRemove   Code = "package-failed-to-remove"
)

// JobError is a structured, typed error attached to a Job via
// Job.ErrorCode. Only the first one set on a Job is ever kept.
type JobError struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a diagnostic key/value pair and returns the error
// for chaining.
func (e *JobError) WithDetail(key string, value interface{}) *JobError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New builds a JobError with no wrapped cause.
func New(code Code, format string, args ...interface{}) *JobError {
	return &JobError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a JobError around an existing error.
func Wrap(code Code, err error, format string, args ...interface{}) *JobError {
	return &JobError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is a JobError carrying the given code.
func Is(err error, code Code) bool {
	var je *JobError
	if errors.As(err, &je) {
		return je.Code == code
	}
	return false
}

// As extracts a *JobError from an error chain, if any.
func As(err error) *JobError {
	var je *JobError
	if errors.As(err, &je) {
		return je
	}
	return nil
}
