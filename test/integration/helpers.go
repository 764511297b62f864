//go:build integration

package integration

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// TestConfig holds configuration for integration tests.
type TestConfig struct {
	Subdomain   string
	AccessToken string
	BinaryPath  string
	Verbose     bool
}

// LoadTestConfig loads configuration from environment variables.
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		Subdomain:   os.Getenv("AMOCRM_SUBDOMAIN"),
		AccessToken: os.Getenv("AMOCRM_ACCESS_TOKEN"),
		BinaryPath:  getBinaryPath(),
		Verbose:     os.Getenv("AMOCRM_VERBOSE") == "true",
	}
}

// getBinaryPath determines the path to the amocrm binary.
func getBinaryPath() string {
	if path := os.Getenv("AMOCRM_BINARY_PATH"); path != "" {
		return path
	}

	for _, candidate := range []string{"../../amocrm", "./amocrm", "../amocrm"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "amocrm"
}

// SkipIfMissingConfig skips the test unless an account and binary are available.
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.Subdomain == "" || config.AccessToken == "" {
		t.Skip("AMOCRM_SUBDOMAIN or AMOCRM_ACCESS_TOKEN not set, skipping integration test")
	}

	if _, err := exec.LookPath(config.BinaryPath); err != nil {
		t.Skipf("amocrm binary not found at %s, skipping integration test", config.BinaryPath)
	}
}

// CommandRunner runs amocrm commands against the configured account.
type CommandRunner struct {
	config    *TestConfig
	configDir string
	t         *testing.T
}

// NewCommandRunner creates a runner with an isolated config file.
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config:    config,
		configDir: t.TempDir(),
		t:         t,
	}
}

// Run executes an amocrm command and returns its output.
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	args = append([]string{"--config", runner.configDir + "/config.yml", "--no-color"}, args...)

	cmd := exec.Command(runner.config.BinaryPath, args...)
	cmd.Env = append(os.Environ(),
		"AMOCRM_SUBDOMAIN="+runner.config.Subdomain,
		"AMOCRM_ACCESS_TOKEN="+runner.config.AccessToken,
	)

	var stdoutBuf, stderrBuf bytes.Buffer

	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.BinaryPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}
