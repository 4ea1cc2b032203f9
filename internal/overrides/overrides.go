// Package overrides edits the Wine DLL override registry for fixes that need
// a bundled library forced over Wine's builtin.
package overrides

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/logging"
)

var log = logging.L("overrides")

// RegFileName is the per-prefix registry file the overrides live in.
const RegFileName = "user.reg"

// sectionMarker starts the DllOverrides section. Wine appends a timestamp to
// the header line, so matching is by prefix.
const sectionMarker = `[Software\\Wine\\DllOverrides]`

var (
	ErrRegFileMissing = errors.New("wine registry file not found")
	ErrNoSection      = errors.New("wine registry has no DllOverrides section")
)

// Manager rewrites the override registry file. The file is line-oriented and
// rewritten in full: read all lines, splice, write all lines.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Line formats a single override entry for a DLL name.
func Line(name string) string {
	return fmt.Sprintf(`"%s"="native,builtin"`, name)
}

// Apply inserts override entries for names immediately after the
// DllOverrides section header in prefixDir's registry file. It returns the
// lines actually written so they can be reversed later.
func (m *Manager) Apply(prefixDir string, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	regPath := filepath.Join(prefixDir, RegFileName)
	lines, err := readLines(regPath)
	if err != nil {
		return nil, err
	}

	at := sectionIndex(lines)
	if at < 0 {
		return nil, ErrNoSection
	}

	written := make([]string, 0, len(names))
	for _, name := range names {
		written = append(written, Line(name))
	}

	spliced := make([]string, 0, len(lines)+len(written))
	spliced = append(spliced, lines[:at+1]...)
	spliced = append(spliced, written...)
	spliced = append(spliced, lines[at+1:]...)

	if err := writeLines(regPath, spliced); err != nil {
		return nil, err
	}

	log.Info("applied dll overrides", "count", len(written), "prefix", prefixDir)
	return written, nil
}

// Revert removes previously written override lines from the registry file.
func (m *Manager) Revert(prefixDir string, applied []string) error {
	if len(applied) == 0 {
		return nil
	}

	regPath := filepath.Join(prefixDir, RegFileName)
	lines, err := readLines(regPath)
	if err != nil {
		return err
	}

	drop := make(map[string]bool, len(applied))
	for _, l := range applied {
		drop[l] = true
	}

	kept := lines[:0]
	for _, l := range lines {
		if drop[l] {
			drop[l] = false // remove each applied line once
			continue
		}
		kept = append(kept, l)
	}

	return writeLines(regPath, kept)
}

func sectionIndex(lines []string) int {
	for i, l := range lines {
		if strings.HasPrefix(l, sectionMarker) {
			return i
		}
	}
	return -1
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrRegFileMissing
	}
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"), nil
}

func writeLines(path string, lines []string) error {
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644)
}
