// Package launcherrors declares the typed error sentinels named by the
// launcher's error-handling design: one exported sentinel per error kind,
// wrapped with context at the call site via fmt.Errorf("...: %w", err) in
// the teacher's idiom, and unwrapped again with errors.Is.
package launcherrors

import "errors"

var (
	ErrDescriptorMissing   = errors.New("descriptor missing")
	ErrLayerNotFound       = errors.New("layer not found")
	ErrNoDesktopEntry      = errors.New("no desktop entry")
	ErrUnsupportedArch     = errors.New("unsupported architecture")
	ErrTemplateParseFailure = errors.New("template parse failure")
	ErrConfigWriteFailure  = errors.New("config write failure")
	ErrSocketSetupFailure  = errors.New("socket setup failure")
	ErrForkFailure         = errors.New("fork failure")
	ErrHelperExecFailure   = errors.New("helper exec failure")
	ErrWriteFailure        = errors.New("write failure")
	ErrSessionClosed       = errors.New("session closed")
)

// kindNames maps each sentinel to the stable kind string used in logs, so
// callers never have to string-match an error message.
var kindNames = map[error]string{
	ErrDescriptorMissing:    "DescriptorMissing",
	ErrLayerNotFound:        "LayerNotFound",
	ErrNoDesktopEntry:       "NoDesktopEntry",
	ErrUnsupportedArch:      "UnsupportedArch",
	ErrTemplateParseFailure: "TemplateParseFailure",
	ErrConfigWriteFailure:   "ConfigWriteFailure",
	ErrSocketSetupFailure:   "SocketSetupFailure",
	ErrForkFailure:          "ForkFailure",
	ErrHelperExecFailure:    "HelperExecFailure",
	ErrWriteFailure:         "WriteFailure",
	ErrSessionClosed:        "SessionClosed",
}

// Kind returns the stable kind name for err, matching it against every
// known sentinel via errors.Is, or "" if err does not wrap a known kind.
func Kind(err error) string {
	for sentinel, name := range kindNames {
		if errors.Is(err, sentinel) {
			return name
		}
	}
	return ""
}
