package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

var (
	// ErrNoTerminal is returned when the passphrase is neither exported nor
	// promptable.
	ErrNoTerminal = errors.New("passphrase: no terminal available")
	// ErrEmpty rejects whitespace-only passphrases.
	ErrEmpty = errors.New("passphrase: empty passphrase")
	// ErrMismatch is returned when the confirmation prompt differs.
	ErrMismatch = errors.New("passphrase: confirmation does not match")
)

// Prompter reads a secret without echoing it.
type Prompter interface {
	Available() bool
	ReadSecret(prompt string) (string, error)
}

// Source resolves the sale keystore passphrase once, from the environment or
// the operator's terminal, and caches the result.
type Source struct {
	envVar  string
	confirm bool
	lookup  func(string) (string, bool)
	prompt  Prompter

	once  sync.Once
	value string
	err   error
}

// Option customises a Source.
type Option func(*Source)

// WithConfirmation asks twice when prompting, for keystores being created.
func WithConfirmation() Option { return func(s *Source) { s.confirm = true } }

// WithLookup replaces os.LookupEnv.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(s *Source) { s.lookup = lookup }
}

// WithPrompter replaces the stdin terminal.
func WithPrompter(p Prompter) Option { return func(s *Source) { s.prompt = p } }

// NewSource returns a Source reading envVar before falling back to a prompt.
func NewSource(envVar string, opts ...Option) *Source {
	s := &Source{
		envVar: strings.TrimSpace(envVar),
		lookup: os.LookupEnv,
		prompt: stdinTerminal{out: os.Stderr},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the passphrase. Exported values are used verbatim.
func (s *Source) Get() (string, error) {
	s.once.Do(func() { s.value, s.err = s.resolve() })
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := s.lookup(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%w: %s is set but blank", ErrEmpty, s.envVar)
			}
			return value, nil
		}
	}
	if !s.prompt.Available() {
		if s.envVar != "" {
			return "", fmt.Errorf("%w: export %s", ErrNoTerminal, s.envVar)
		}
		return "", ErrNoTerminal
	}
	value, err := s.prompt.ReadSecret("Sale keystore passphrase: ")
	if err != nil {
		return "", fmt.Errorf("passphrase: read: %w", err)
	}
	if strings.TrimSpace(value) == "" {
		return "", ErrEmpty
	}
	if s.confirm {
		again, err := s.prompt.ReadSecret("Repeat passphrase: ")
		if err != nil {
			return "", fmt.Errorf("passphrase: read: %w", err)
		}
		if again != value {
			return "", ErrMismatch
		}
	}
	return value, nil
}

type stdinTerminal struct{ out io.Writer }

func (t stdinTerminal) Available() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

func (t stdinTerminal) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(t.out)
	return string(raw), err
}
