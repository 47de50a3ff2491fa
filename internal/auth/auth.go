// Package auth obtains the GitHub token used by the project backend.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// DefaultEnvVar is the environment variable read when none is configured.
const DefaultEnvVar = "GITHUB_TOKEN"

// TokenProvider defines the interface for obtaining a GitHub authentication token.
type TokenProvider interface {
	GetToken() (string, error)
}

// GhCliProvider obtains tokens by shelling out to the GitHub CLI (`gh auth token`).
type GhCliProvider struct {
	// Command overrides the executable name; empty means "gh".
	Command string
}

// GetToken shells out to `gh auth token` to retrieve the current token.
// Returns an error if gh CLI is not installed, not authenticated, or the command fails.
func (g *GhCliProvider) GetToken() (string, error) {
	name := g.Command
	if name == "" {
		name = "gh"
	}
	cmd := exec.Command(name, "auth", "token", "--hostname", "github.com")
	output, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return "", errors.New("gh CLI not found in PATH")
		}
		return "", fmt.Errorf("gh auth token failed: %w", err)
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", errors.New("gh auth token returned empty token")
	}

	return token, nil
}

// EnvProvider reads the token from an environment variable.
type EnvProvider struct {
	// Var is the variable name; empty means DefaultEnvVar.
	Var string
}

func (e *EnvProvider) name() string {
	if e.Var == "" {
		return DefaultEnvVar
	}
	return e.Var
}

// GetToken returns an error if the variable is not set or is empty.
func (e *EnvProvider) GetToken() (string, error) {
	name := e.name()
	token := strings.TrimSpace(os.Getenv(name))
	if token == "" {
		return "", fmt.Errorf("%s environment variable not set or empty", name)
	}
	return token, nil
}

// Chain tries providers in order and returns the first token found.
type Chain []TokenProvider

// GetToken joins every provider error when none yields a token.
func (c Chain) GetToken() (string, error) {
	var errs []error
	for _, p := range c {
		token, err := p.GetToken()
		if err == nil {
			return token, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", errors.New("no token provider configured")
	}
	return "", errors.Join(errs...)
}

// GetToken reads envVar first and falls back to the gh CLI. The returned
// error tells the user how to fix authentication.
func GetToken(envVar string) (string, error) {
	env := &EnvProvider{Var: envVar}
	token, err := Chain{env, &GhCliProvider{}}.GetToken()
	if err == nil {
		return token, nil
	}

	return "", fmt.Errorf(
		"failed to obtain GitHub token: %w\n"+
			"Please either:\n"+
			"  1. Set the %s environment variable with a personal access token, or\n"+
			"  2. Run 'gh auth login' to authenticate with GitHub CLI",
		err, env.name(),
	)
}
