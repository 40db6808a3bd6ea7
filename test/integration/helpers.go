//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	SiteURL    string
	Token      string
	TestList   string
	BinaryPath string
	Verbose    bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	list := os.Getenv("SPREST_TEST_LIST")
	if list == "" {
		list = "sprest integration"
	}

	return &TestConfig{
		SiteURL:    os.Getenv("SPREST_SITE"),
		Token:      os.Getenv("SPREST_TOKEN"),
		TestList:   list,
		BinaryPath: getBinaryPath(),
		Verbose:    os.Getenv("SPREST_VERBOSE") == "true",
	}
}

// getBinaryPath determines the path to the sprest binary
func getBinaryPath() string {
	if path := os.Getenv("SPREST_BINARY_PATH"); path != "" {
		return path
	}

	candidates := []string{
		"../../sprest",
		"./sprest",
		"../sprest",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	if path, err := exec.LookPath("sprest"); err == nil {
		return path
	}

	return "sprest"
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.SiteURL == "" || config.Token == "" {
		t.Skip("SPREST_SITE or SPREST_TOKEN not set, skipping integration test")
	}

	if _, err := exec.LookPath(config.BinaryPath); err != nil {
		t.Skipf("sprest binary not found at %s, skipping integration test", config.BinaryPath)
	}
}

// CommandRunner runs sprest commands against the configured site with an
// isolated config file.
type CommandRunner struct {
	config     *TestConfig
	configFile string
	t          *testing.T
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config:     config,
		configFile: filepath.Join(t.TempDir(), "config.yml"),
		t:          t,
	}
}

// Run executes a sprest command and returns output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	return runner.RunWithInput("", args...)
}

// RunWithInput executes a sprest command with stdin input
func (runner *CommandRunner) RunWithInput(input string, args ...string) (stdout, stderr string, err error) {
	full := append([]string{"--config", runner.configFile}, args...)

	cmd := exec.Command(runner.config.BinaryPath, full...)
	cmd.Env = append(os.Environ(),
		"SPREST_SITE="+runner.config.SiteURL,
		"SPREST_TOKEN="+runner.config.Token,
	)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	cmd.Stdin = strings.NewReader(input)

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.BinaryPath, strings.Join(full, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// RunJSON executes a sprest command with JSON output and decodes it into v
func (runner *CommandRunner) RunJSON(v any, args ...string) error {
	stdout, stderr, err := runner.Run(append(args, "--output", "json")...)
	if err != nil {
		return fmt.Errorf("%w: %s", err, stderr)
	}

	return json.Unmarshal([]byte(stdout), v)
}

// CleanupItem attempts to delete a test item
func (runner *CommandRunner) CleanupItem(id int) {
	stdout, stderr, err := runner.Run("items", "delete", runner.config.TestList, fmt.Sprint(id))
	if err != nil && runner.config.Verbose {
		runner.t.Logf("Cleanup warning for item %d: %s\nStderr: %s", id, stdout, stderr)
	}
}

// GenerateTestName creates a unique test title
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// WaitForCondition waits for a condition to be met with timeout
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	timeoutChan := time.After(timeout)

	for {
		select {
		case <-ticker.C:
			if condition() {
				return
			}
		case <-timeoutChan:
			t.Fatalf("Timeout waiting for condition: %s", message)
		}
	}
}

// AssertJSONOutput verifies command output is valid JSON
func AssertJSONOutput(t *testing.T, output string) {
	t.Helper()

	require.True(t, json.Valid([]byte(strings.TrimSpace(output))), "Output is not JSON: %s", output)
}

// itemID extracts the numeric Id of an item decoded from JSON output
func itemID(t *testing.T, item map[string]any) int {
	t.Helper()

	id, ok := item["Id"].(float64)
	require.True(t, ok, "item has no numeric Id: %v", item)

	return int(id)
}
