package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"finstack/internal/stack"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default finstack.yaml in the current directory",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing finstack.yaml")
}

// Settings is the serializable view of the effective configuration
type Settings struct {
	Compose struct {
		File       string `json:"file,omitempty" yaml:"file,omitempty"`
		Project    string `json:"project,omitempty" yaml:"project,omitempty"`
		AppService string `json:"app_service" yaml:"app_service"`
	} `json:"compose" yaml:"compose"`
	Watch struct {
		Paths    []string `json:"paths" yaml:"paths"`
		Debounce string   `json:"debounce" yaml:"debounce"`
	} `json:"watch" yaml:"watch"`
	History struct {
		Enabled bool   `json:"enabled" yaml:"enabled"`
		Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	} `json:"history" yaml:"history"`
	Services []ServiceView `json:"services" yaml:"services"`
}

// ServiceView summarizes a service spec for display. Ports are fixed in the
// binary and shown here read-only.
type ServiceView struct {
	Name   string `json:"name" yaml:"name"`
	Binary string `json:"binary" yaml:"binary"`
	Entry  string `json:"entry" yaml:"entry"`
	Port   int    `json:"port,omitempty" yaml:"port,omitempty"`
}

func currentSettings() Settings {
	var s Settings
	s.Compose.File = viper.GetString("compose.file")
	s.Compose.Project = viper.GetString("compose.project")
	s.Compose.AppService = viper.GetString("compose.app_service")
	s.Watch.Paths = viper.GetStringSlice("watch.paths")
	s.Watch.Debounce = viper.GetString("watch.debounce")
	s.History.Enabled = viper.GetBool("history.enabled")
	s.History.Path = viper.GetString("history.path")

	for _, spec := range stack.All() {
		s.Services = append(s.Services, ServiceView{
			Name:   string(spec.Name),
			Binary: spec.Binary,
			Entry:  spec.Entry,
			Port:   spec.Port,
		})
	}
	return s
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings := currentSettings()

	if IsJSONOutput() {
		output, err := json.MarshalIndent(settings, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	output, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	fmt.Print(string(output))
	return nil
}

const defaultConfigTemplate = `# finstack configuration
compose:
  # file: docker-compose.yml
  # project: finstack
  app_service: session

watch:
  paths:
    - .
  debounce: 300ms

history:
  enabled: true
  # path: ~/.finstack/history.db
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	const path = "finstack.yaml"

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}
