package plugindomain

import (
	"fmt"

	"github.com/kilometers-ai/plugin-updater/internal/core/domain/version"
)

// Entry is a tracked plugin. SourceURL is the identity; Version is the
// locally installed version and only changes after a successful install.
type Entry struct {
	Name      string         `json:"name"`
	SourceURL string         `json:"source_url"`
	Version   version.SemVer `json:"version"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s (%s)", e.Name, e.Version, e.SourceURL)
}

// CheckStatus is the result kind of a single update check
type CheckStatus int

const (
	StatusUpToDate CheckStatus = iota
	StatusOutdated
	StatusCheckFailed
)

func (s CheckStatus) String() string {
	switch s {
	case StatusUpToDate:
		return "up-to-date"
	case StatusOutdated:
		return "outdated"
	case StatusCheckFailed:
		return "check-failed"
	default:
		return "unknown"
	}
}

// CheckOutcome is what the update checker reports for one entry.
// Remote is set for StatusOutdated and StatusUpToDate, Err for StatusCheckFailed.
type CheckOutcome struct {
	Entry  Entry
	Status CheckStatus
	Remote version.SemVer
	Err    error
}

// UpToDate builds an up-to-date outcome
func UpToDate(entry Entry, remote version.SemVer) CheckOutcome {
	return CheckOutcome{Entry: entry, Status: StatusUpToDate, Remote: remote}
}

// Outdated builds an outdated outcome
func Outdated(entry Entry, remote version.SemVer) CheckOutcome {
	return CheckOutcome{Entry: entry, Status: StatusOutdated, Remote: remote}
}

// CheckFailed builds a failed outcome
func CheckFailed(entry Entry, err error) CheckOutcome {
	return CheckOutcome{Entry: entry, Status: StatusCheckFailed, Err: err}
}

// InstallStatus is the result kind of an install
type InstallStatus int

const (
	StatusInstalled InstallStatus = iota
	StatusInstallFailed
)

func (s InstallStatus) String() string {
	if s == StatusInstalled {
		return "installed"
	}
	return "install-failed"
}

// InstallOutcome reports an install attempt. Path is the file written.
type InstallOutcome struct {
	Entry    Entry
	Status   InstallStatus
	Previous version.SemVer
	Version  version.SemVer
	Path     string
	Err      error
}

// Installed builds a successful install outcome
func Installed(entry Entry, newVersion version.SemVer, path string) InstallOutcome {
	return InstallOutcome{
		Entry:    entry,
		Status:   StatusInstalled,
		Previous: entry.Version,
		Version:  newVersion,
		Path:     path,
	}
}

// InstallFailed builds a failed install outcome
func InstallFailed(entry Entry, err error) InstallOutcome {
	return InstallOutcome{Entry: entry, Status: StatusInstallFailed, Previous: entry.Version, Err: err}
}

// ReplacedMessage is the toast shown after a successful install
func (o InstallOutcome) ReplacedMessage() string {
	return fmt.Sprintf("%s %s has been replaced by %s %s", o.Entry.Name, o.Previous, o.Entry.Name, o.Version)
}
