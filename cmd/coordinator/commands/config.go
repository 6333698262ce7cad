package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/biodoia/agentmesh/pkg/config"
)

// ConfigCmd rappresenta il comando config
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage AgentMesh configuration files.

This command allows you to view, validate, and generate configuration
files for the AgentMesh coordinator.`,
	Example: `  # Show current configuration
  agentmesh config show

  # Validate configuration file
  agentmesh config validate -c config.yaml

  # Generate template configuration
  agentmesh config generate -o config.yaml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the currently loaded configuration with all values.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate a configuration file for syntax and semantic errors.`,
	RunE:  runConfigValidate,
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate template configuration",
	Long:  `Generate a template configuration file with all available options.`,
	Example: `  # Generate to stdout
  agentmesh config generate

  # Generate to file
  agentmesh config generate -o config.yaml

  # Generate production config
  agentmesh config generate --env production -o prod.yaml`,
	RunE: runConfigGenerate,
}

var (
	configOutput string
	configEnv    string
)

func init() {
	configGenerateCmd.Flags().StringVarP(&configOutput, "output", "o", "", "Output file path (stdout if not specified)")
	configGenerateCmd.Flags().StringVar(&configEnv, "env", "development", "Environment (development, production)")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configGenerateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println("# Current Configuration")
	fmt.Println("# =====================")
	fmt.Println()
	fmt.Print(string(data))

	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	fmt.Printf("Validating configuration: %s\n\n", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Println("✗ Failed to load configuration")
		return err
	}

	fmt.Println("✓ Configuration loaded successfully")

	if err := cfg.Validate(); err != nil {
		fmt.Println("✗ Configuration validation failed")
		return err
	}

	fmt.Println("✓ Configuration is valid")
	fmt.Println()
	fmt.Println("Configuration summary:")
	fmt.Printf("  Server:     %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Storage:    %s\n", cfg.Storage.Backend)
	fmt.Printf("  Agents:     %d\n", len(cfg.Agents))
	fmt.Printf("  Cache TTL:  %s\n", cfg.Cache.TTL)
	fmt.Printf("  Prometheus: %v\n", cfg.Monitoring.Prometheus.Enabled)

	return nil
}

func runConfigGenerate(cmd *cobra.Command, args []string) error {
	cfg := generateTemplateConfig(configEnv)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	output := `# AgentMesh Configuration File
# ============================
#
# This is a template configuration for the AgentMesh coordinator.
# Adjust the values according to your environment.
#
# Environment: ` + configEnv + `

`
	output += string(data)

	if configOutput != "" {
		if err := os.WriteFile(configOutput, []byte(output), 0644); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		fmt.Printf("✓ Configuration template generated: %s\n", configOutput)
	} else {
		fmt.Print(output)
	}

	return nil
}

func generateTemplateConfig(env string) *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Auth: config.AuthConfig{
			JWTSecret:     "change-me",
			Issuer:        "agentmesh",
			UserRateLimit: 120,
		},
		Storage: config.StorageConfig{
			Backend:       "file",
			DataDirectory: "./data/clients",
		},
		Agents: []config.AgentConfig{
			{
				ID:          "research-1",
				Type:        "content_research",
				Endpoint:    "http://localhost:9001/execute",
				MaxCapacity: 10,
				Timeout:     10 * time.Second,
			},
			{
				ID:          "seo-1",
				Type:        "technical_seo",
				Endpoint:    "http://localhost:9002/execute",
				MaxCapacity: 10,
				Timeout:     10 * time.Second,
			},
		},
		Routing: config.RoutingConfig{
			Classifier:    "keyword",
			DefaultType:   "content_research",
			LoadWeight:    0.6,
			LatencyWeight: 0.4,
		},
		Health: config.HealthConfig{
			FailureThreshold: 3,
			BaseCooldown:     30 * time.Second,
			MaxCooldown:      10 * time.Minute,
		},
		Cache: config.CacheConfig{
			TTL:        15 * time.Minute,
			MaxEntries: 1024,
		},
		Dispatch: config.DispatchConfig{
			MaxAttempts:     3,
			InitialBackoff:  100 * time.Millisecond,
			MaxBackoff:      5 * time.Second,
			DefaultTimeout:  10 * time.Second,
			RequestDeadline: 30 * time.Second,
			FeedbackTimeout: 10 * time.Second,
		},
	}

	if env == "production" {
		cfg.Storage.Backend = "database"
		cfg.Storage.DatabaseType = "postgres"
		cfg.Storage.DatabaseConnection = "host=localhost user=agentmesh password=changeme dbname=agentmesh sslmode=require"
		cfg.Storage.DatabaseMaxConns = 100
		cfg.Monitoring.Logging.Level = "info"
		cfg.Monitoring.Logging.Format = "json"
	} else {
		cfg.Monitoring.Logging.Level = "debug"
		cfg.Monitoring.Logging.Format = "console"
	}

	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Namespace = "agentmesh"

	return cfg
}
