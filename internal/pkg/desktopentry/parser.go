// Package desktopentry parses the Exec= line of a Desktop Entry
// specification file: shell-style tokenization, field-code stripping, and
// leading "env KEY=VALUE" prefix extraction.
package desktopentry

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

var fieldCodeRE = regexp.MustCompile(`^%\w$`)

var envPrefixRE = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// Parsed is the result of parsing an Exec= value: the resolved argument
// list (field codes stripped) and any env assignment carried by a leading
// "env KEY=VALUE" prefix.
type Parsed struct {
	Args   []string
	EnvKey string
	EnvVal string
}

// ParseExec tokenizes raw (the Exec= value of a .desktop file) respecting
// shell-style quoting, strips a single trailing field code
// (%f %F %u %U %i %c %k ...), and extracts a leading "env KEY=VALUE" prefix
// if present.
func ParseExec(raw string) (Parsed, error) {
	fields, err := shell.Fields(raw, nil)
	if err != nil {
		return Parsed{}, err
	}

	var p Parsed
	if len(fields) > 0 && fields[0] == "env" && len(fields) > 1 {
		if m := envPrefixRE.FindStringSubmatch(fields[1]); m != nil {
			p.EnvKey, p.EnvVal = m[1], m[2]
			fields = fields[2:]
		}
	}

	if n := len(fields); n > 0 && fieldCodeRE.MatchString(fields[n-1]) {
		fields = fields[:n-1]
	}

	p.Args = fields
	return p, nil
}

// HasLegacyLayout reports whether layerRoot uses the historical
// "outputs/share" packaging layout, which changes how a resolved desktop
// Exec is post-processed (§9 "Desktop Exec parsing" design note: encode the
// choice via feature detection rather than a flag).
func HasLegacyLayout(layerRoot string) bool {
	_, err := os.Stat(filepath.Join(layerRoot, "outputs", "share"))
	return err == nil
}

// StripLauncherWrapper removes every token up to and including a literal
// "--exec" marker, which in the non-legacy layout belongs to the launcher
// wrapper script rather than the application's own command line.
func StripLauncherWrapper(args []string) []string {
	for i, a := range args {
		if a == "--exec" {
			return append([]string{}, args[i+1:]...)
		}
	}
	return args
}

// FindDesktopFile returns the path to the single .desktop file under
// <appRoot>/entries/applications, or "" if none exists.
func FindDesktopFile(appRoot string) (string, error) {
	dir := filepath.Join(appRoot, "entries", "applications")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".desktop") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", nil
}

// ReadExec extracts the value of the first "Exec=" line found in the
// .desktop file at path.
func ReadExec(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Exec=") {
			return strings.TrimPrefix(line, "Exec="), nil
		}
	}
	return "", nil
}
