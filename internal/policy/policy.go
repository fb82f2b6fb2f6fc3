package policy

import (
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
)

var (
	ErrForbiddenPath = errors.New("path is outside allowed roots")
	ErrShellDisabled = errors.New("shell execution is disabled")
	ErrCommandDenied = errors.New("command is denied by policy")
)

type Engine struct {
	allowedRoots []string
	allowShell   bool
	denied       [][]string
}

func New(allowedRoots []string, allowShell bool, deniedCommands []string) (*Engine, error) {
	norm := make([]string, 0, len(allowedRoots))
	for _, root := range allowedRoots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve root %q", root)
		}
		norm = append(norm, filepath.Clean(abs))
	}
	denied := make([][]string, 0, len(deniedCommands))
	for _, d := range deniedCommands {
		if words := commandWords(d); len(words) > 0 {
			denied = append(denied, words)
		}
	}
	return &Engine{allowedRoots: norm, allowShell: allowShell, denied: denied}, nil
}

func (e *Engine) AllowedRoots() []string {
	cp := make([]string, len(e.allowedRoots))
	copy(cp, e.allowedRoots)
	return cp
}

func (e *Engine) AllowShell() bool {
	return e.allowShell
}

// ResolvePath makes p absolute against cwd and checks it against the allowed
// roots.
func (e *Engine) ResolvePath(cwd, p string) (string, error) {
	candidate := p
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(cwd, candidate)
	}
	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", err
	}
	cleaned := filepath.Clean(abs)
	if !e.IsAllowed(cleaned) {
		return "", errors.Wrap(ErrForbiddenPath, cleaned)
	}
	return cleaned, nil
}

func (e *Engine) IsAllowed(path string) bool {
	if len(e.allowedRoots) == 0 {
		return false
	}
	cleaned := filepath.Clean(path)
	for _, root := range e.allowedRoots {
		if cleaned == root {
			return true
		}
		if strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// CheckCommand rejects shell commands when shell execution is off or when a
// denied entry appears in the command as a run of consecutive words. Words
// are compared by base name, so /usr/bin/sudo matches sudo.
func (e *Engine) CheckCommand(command string) error {
	if !e.allowShell {
		return ErrShellDisabled
	}
	words := commandWords(command)
	for _, d := range e.denied {
		if containsRun(words, d) {
			return errors.Wrapf(ErrCommandDenied, "%q", strings.Join(d, " "))
		}
	}
	return nil
}

func commandWords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', ';', '|', '&', '(', ')', '`':
			return true
		}
		return false
	})
	for i, f := range fields {
		fields[i] = filepath.Base(strings.Trim(f, `"'`))
	}
	return fields
}

func containsRun(words, run []string) bool {
	for i := 0; i+len(run) <= len(words); i++ {
		match := true
		for j := range run {
			if words[i+j] != run[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
