package discovery

import "errors"

// Candidate rejection reasons. Each is wrapped into an
// errors.ErrorTypeCandidateRejected AppError by the scanner.
var (
	ErrNotRegularFile     = errors.New("candidate is neither a directory nor a regular file")
	ErrTooSmall           = errors.New("candidate file is far too small to be a zip archive")
	ErrBadSignature       = errors.New("candidate file does not start with the zip local file header signature")
	ErrNoManifest         = errors.New("no " + ManifestName + " file exists")
	ErrManifestUnreadable = errors.New(ManifestName + " could not be read")
	ErrMissingModuleInfo  = errors.New("manifest does not declare the required " + ModuleSection + " section")
	ErrMissingIdentity    = errors.New("module section must declare id and name")
	ErrInvalidVersion     = errors.New("manifest version is not a valid semantic version")
	ErrMissingAPIRange    = errors.New("manifest does not declare an API version range")
	ErrInvalidAPIRange    = errors.New("manifest API version range is malformed")
	ErrIncompatibleAPI    = errors.New("module was built against an incompatible API version")
	ErrMissingEntryPoint  = errors.New("module entry point does not exist")
	ErrInvalidEntryPoint  = errors.New("module entry point escapes its container")
)
