package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/biodoia/agentmesh/internal/knowledge"
	"github.com/biodoia/agentmesh/pkg/config"
)

// DoctorCmd rappresenta il comando doctor
var DoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health diagnostics",
	Long: `Run health checks on the AgentMesh system.

This command checks configuration validity, knowledge store
connectivity, and agent endpoint reachability.`,
	Example: `  # Run full diagnostic
  agentmesh doctor

  # Check a specific agent
  agentmesh doctor --agent seo-1

  # Verbose output
  agentmesh doctor --verbose`,
	RunE: runDoctor,
}

var (
	doctorAgent   string
	doctorVerbose bool
)

func init() {
	DoctorCmd.Flags().StringVar(&doctorAgent, "agent", "", "Check a specific agent id")
	DoctorCmd.Flags().BoolVarP(&doctorVerbose, "verbose", "v", false, "Verbose output")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("AgentMesh System Health Check")
	fmt.Println("=============================")
	fmt.Println()

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("✗ Failed to load config: %v\n", err)
		return err
	}

	results := map[string]bool{
		"config":  checkConfig(cfg),
		"storage": checkStorage(cfg),
		"agents":  checkAgents(cfg),
	}

	fmt.Println("Summary")
	fmt.Println("-------")
	allPassed := true
	for _, name := range []string{"config", "storage", "agents"} {
		status := "✓ PASS"
		if !results[name] {
			status = "✗ FAIL"
			allPassed = false
		}
		fmt.Printf("%-10s %s\n", name+":", status)
	}

	fmt.Println()
	if allPassed {
		fmt.Println("✓ All checks passed - system is healthy")
		return nil
	}
	fmt.Println("✗ Some checks failed - please review errors above")
	return fmt.Errorf("health check failed")
}

func checkConfig(cfg *config.Config) bool {
	fmt.Println("[1/3] Configuration Check")
	fmt.Println("-------------------------")

	if err := cfg.Validate(); err != nil {
		fmt.Printf("✗ Invalid configuration: %v\n\n", err)
		return false
	}

	fmt.Println("✓ Configuration valid")
	if len(cfg.Agents) == 0 {
		fmt.Println("⚠️  Warning: no agents configured")
	} else {
		fmt.Printf("✓ %d agent(s) configured\n", len(cfg.Agents))
	}
	fmt.Println()
	return true
}

func checkStorage(cfg *config.Config) bool {
	fmt.Println("[2/3] Knowledge Store Check")
	fmt.Println("---------------------------")

	store, err := knowledge.NewStore(&cfg.Storage)
	if err != nil {
		fmt.Printf("✗ Failed to initialize store (%s): %v\n\n", cfg.Storage.Backend, err)
		return false
	}
	defer store.Close()

	fmt.Printf("✓ Store initialized (backend: %s)\n", cfg.Storage.Backend)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clients, err := store.List(ctx)
	if err != nil {
		fmt.Printf("✗ Store unreachable: %v\n\n", err)
		return false
	}

	fmt.Printf("✓ Store reachable, %d client(s) found\n", len(clients))
	if doctorVerbose {
		for _, id := range clients {
			fmt.Printf("  - %s\n", id)
		}
	}
	fmt.Println()
	return true
}

func checkAgents(cfg *config.Config) bool {
	fmt.Println("[3/3] Agent Endpoint Check")
	fmt.Println("--------------------------")

	agents := cfg.Agents
	if doctorAgent != "" {
		agents = nil
		for _, a := range cfg.Agents {
			if a.ID == doctorAgent {
				agents = append(agents, a)
			}
		}
		if len(agents) == 0 {
			fmt.Printf("✗ Agent not found: %s\n\n", doctorAgent)
			return false
		}
	}

	if len(agents) == 0 {
		fmt.Println("⚠️  No agents configured")
		fmt.Println()
		return true
	}

	fmt.Printf("Checking %d agent(s)...\n\n", len(agents))

	healthyCount := 0
	for _, agent := range agents {
		fmt.Printf("Agent: %s\n", agent.ID)
		fmt.Printf("  Type: %s\n", agent.Type)
		fmt.Printf("  Endpoint: %s\n", agent.Endpoint)

		if pingEndpoint(agent.Endpoint) {
			fmt.Println("  Health: ✓ OK")
			healthyCount++
		} else {
			fmt.Println("  Health: ✗ UNREACHABLE")
		}
		fmt.Println()
	}

	fmt.Printf("Summary: %d/%d agents reachable\n\n", healthyCount, len(agents))
	return healthyCount == len(agents)
}

func pingEndpoint(endpoint string) bool {
	client := &http.Client{Timeout: 10 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	// Any response means the server is there, even a 404 or 405
	return resp.StatusCode > 0
}
