package model

import "fmt"

// ProbeStatus identifies the terminal state of a package availability probe.
type ProbeStatus string

const (
	ProbeChecking    ProbeStatus = "checking"
	ProbeAvailable   ProbeStatus = "available"
	ProbeInvalid     ProbeStatus = "invalid"
	ProbeMissing     ProbeStatus = "missing"
	ProbeUnreachable ProbeStatus = "unreachable"
)

// Availability is the tagged result of a package availability probe. Each
// state carries only the fields that are meaningful for it: Missing carries
// nothing, Unreachable carries a detail string, and so on. The sealed method
// keeps the set of variants closed to this package.
type Availability interface {
	Status() ProbeStatus
	Message() string
	sealed()
}

// PackageAvailable reports a package that looks downloadable. SizeKnown is
// false when the probe fell back to signature validation because the server
// declared no usable Content-Length.
type PackageAvailable struct {
	Size        int64
	SizeKnown   bool
	ContentType string
	// Advisory is set when the probe succeeded but with a caveat, e.g. an
	// unexpected content type or an unknown size.
	Advisory string
}

func (PackageAvailable) Status() ProbeStatus { return ProbeAvailable }
func (a PackageAvailable) Message() string {
	if a.Advisory != "" {
		return a.Advisory
	}
	return "package is available for download"
}
func (PackageAvailable) sealed() {}

// PackageInvalid reports a hosted file that exists but is not a plausible
// package: an HTML placeholder, a file without the archive signature, or a
// file below the minimum plausible size.
type PackageInvalid struct {
	Reason      string
	Size        int64
	SizeKnown   bool
	ContentType string
}

func (PackageInvalid) Status() ProbeStatus { return ProbeInvalid }
func (i PackageInvalid) Message() string   { return i.Reason }
func (PackageInvalid) sealed()             {}

// PackageMissing reports a 404 from the package endpoint.
type PackageMissing struct{}

func (PackageMissing) Status() ProbeStatus { return ProbeMissing }
func (PackageMissing) Message() string     { return "no package currently hosted" }
func (PackageMissing) sealed()             {}

// PackageUnreachable reports that availability could not be determined:
// a transport failure or an unexpected HTTP status.
type PackageUnreachable struct {
	Detail string
}

func (PackageUnreachable) Status() ProbeStatus { return ProbeUnreachable }
func (u PackageUnreachable) Message() string {
	if u.Detail != "" {
		return fmt.Sprintf("unable to verify package availability - %s", u.Detail)
	}
	return "unable to verify package availability - network error"
}
func (PackageUnreachable) sealed() {}

// PackageMetadata is the result of the lightweight integrity probe: header
// data read from the package endpoint without downloading the body. Advisory
// flags implausible metadata without changing the availability state.
type PackageMetadata struct {
	Size         int64
	SizeKnown    bool
	ContentType  string
	LastModified string
	Advisory     string
}
