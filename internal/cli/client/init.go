package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	weftDir    = ".weft"
	configFile = "config.yaml"
)

type Config struct {
	Project string `json:"project" yaml:"project"`
}

func InitCmd() *cobra.Command {
	var projectName string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a weft project",
		Long:  "Creates the .weft/ directory and config.yaml with the project name.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runInit(projectName, apiURL, outputJSON)
		},
	}

	cmd.Flags().StringVar(&projectName, "project", "", "Project name (auto-generated from directory name if not provided)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL to save in the global config (default: http://localhost:8787)")

	return cmd
}

func runInit(projectName, apiURL string, outputJSON bool) error {
	if _, err := os.Stat(weftDir); err == nil {
		return fmt.Errorf(".weft directory already exists")
	}

	if projectName == "" {
		cwd, _ := os.Getwd()
		projectName = filepath.Base(cwd)
	}

	if apiURL != "" {
		if err := SaveGlobalConfig(&GlobalConfig{APIURL: apiURL}); err != nil {
			return fmt.Errorf("failed to save global config: %w", err)
		}
	}

	if err := os.MkdirAll(weftDir, 0755); err != nil {
		return fmt.Errorf("failed to create .weft directory: %w", err)
	}

	configPath := filepath.Join(weftDir, configFile)
	configData := fmt.Sprintf("project: %s\n", projectName)
	if err := os.WriteFile(configPath, []byte(configData), 0644); err != nil {
		return fmt.Errorf("failed to create config.yaml: %w", err)
	}

	if outputJSON {
		result := map[string]interface{}{
			"success": true,
			"project": projectName,
			"config":  configPath,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("Initialized weft project '%s'\n", projectName)
		fmt.Printf("Config saved to %s\n", configPath)
		if apiURL != "" {
			fmt.Printf("API URL saved to global config: %s\n", apiURL)
		}
	}

	return nil
}

// LoadConfig reads the config from .weft/config.yaml.
func LoadConfig() (*Config, error) {
	configPath := filepath.Join(weftDir, configFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("not a weft project (run 'weft init' first)")
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Simple YAML parsing for single field
	var config Config
	for _, line := range splitLines(string(data)) {
		if len(line) > 9 && line[:9] == "project: " {
			config.Project = line[9:]
			break
		}
	}

	if config.Project == "" {
		return nil, fmt.Errorf("invalid config: project not found")
	}

	return &config, nil
}

// projectFromConfig returns the project name from .weft/config.yaml, or
// an empty string when the current directory is not a weft project.
func projectFromConfig() string {
	config, err := LoadConfig()
	if err != nil {
		return ""
	}
	return config.Project
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
