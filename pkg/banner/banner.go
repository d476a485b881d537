package banner

import (
	"fmt"

	"resultdb/pkg/config"
)

const banner = `
██████╗ ███████╗███████╗██╗   ██╗██╗  ████████╗    ██████╗ ██████╗
██╔══██╗██╔════╝██╔════╝██║   ██║██║  ╚══██╔══╝    ██╔══██╗██╔══██╗
██████╔╝█████╗  ███████╗██║   ██║██║     ██║       ██║  ██║██████╔╝
██╔══██╗██╔══╝  ╚════██║██║   ██║██║     ██║       ██║  ██║██╔══██╗
██║  ██║███████╗███████║╚██████╔╝███████╗██║       ██████╔╝██████╔╝
╚═╝  ╚═╝╚══════╝╚══════╝ ╚═════╝ ╚══════╝╚═╝       ╚═════╝ ╚═════╝
`

// Print writes the startup banner with the effective listen address,
// database location and feature toggles.
func Print(cfg *config.Config, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:    %s\n", cfg.Addr())
	fmt.Printf("Database:  %s\n", cfg.Database.URL)
	if version != "" {
		fmt.Printf("Version:   %s\n", version)
	}
	fmt.Printf("Writers:   %d\n", len(cfg.Writers))
	fmt.Printf("Auth:      %s\n", onOff(cfg.Auth.Enabled))
	fmt.Printf("Suggest:   %s\n", onOff(cfg.Suggest.Enabled))
	fmt.Printf("Retention: %d table(s)\n", enabledRetention(cfg))

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST  /api/execution                        - Create an execution")
	fmt.Println("GET   /api/executions                       - List executions (paged, filterable)")
	fmt.Println("GET   /api/executions/suggest?query=<q>     - Suggest execution names by prefix")
	fmt.Println("POST  /api/result                           - Submit one test result")
	fmt.Println("POST  /api/executions/{id}/result/stream    - Stream NDJSON test results")
	fmt.Println("GET   /api/execution/{id}/result            - List results for an execution")
	fmt.Println("GET   /api/result/{id}                      - Fetch one result")
	fmt.Println("PATCH /api/result/{id}/status               - Override a result status")

	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://%s/api/execution' -d '{\"name\":\"nightly\"}'\n", cfg.Addr())
	fmt.Printf("curl 'http://%s/api/executions?limit=20'\n", cfg.Addr())

	if !cfg.Auth.Enabled || cfg.Server.RateLimit.RPS <= 0 {
		fmt.Println("\n== Production? ================================================")
		if !cfg.Auth.Enabled {
			fmt.Println("Enable JWT auth ([auth] enabled = true) before exposing this port")
		}
		if cfg.Server.RateLimit.RPS <= 0 {
			fmt.Println("Consider a rate limit ([server.rate_limit] rps) for shared deployments")
		}
	}
	fmt.Println()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func enabledRetention(cfg *config.Config) int {
	n := 0
	for _, r := range cfg.Retention {
		if r.Enabled {
			n++
		}
	}
	return n
}
