package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"wager-core/internal/market"
	"wager-core/pkg/config"
)

// health_check probes a running wager core.
//
//	go run ./scripts/health_check [--json]
//
// HEALTH_HOST overrides the target host (default localhost); the port comes
// from PORT like the server itself.

type HealthStatus struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthReport struct {
	Overall  string         `json:"overall"`
	Services []HealthStatus `json:"services"`
}

func main() {
	fmt.Println("wager-core health check")
	fmt.Println("=======================")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, cfgStatus := checkConfig()
	report := HealthReport{Overall: "HEALTHY", Services: []HealthStatus{cfgStatus}}
	if cfg != nil {
		base := fmt.Sprintf("%s:%s", getenv("HEALTH_HOST", "localhost"), cfg.Port)
		report.Services = append(report.Services,
			checkProfiles(cfg),
			checkAPIServer(ctx, "http://"+base),
			checkEngine(ctx, "http://"+base),
			checkStream(ctx, "ws://"+base),
		)
	}

	for _, svc := range report.Services {
		if svc.Status == "UNHEALTHY" {
			report.Overall = "UNHEALTHY"
			break
		} else if svc.Status == "DEGRADED" {
			report.Overall = "DEGRADED"
		}
	}

	fmt.Println()
	for _, svc := range report.Services {
		icon := "✓"
		if svc.Status == "UNHEALTHY" {
			icon = "✗"
		} else if svc.Status == "DEGRADED" {
			icon = "⚠"
		}
		fmt.Printf("%s %-14s %-9s %s\n", icon, svc.Service, svc.Status, svc.Message)
	}
	fmt.Printf("\nOverall Status: %s\n", report.Overall)

	if len(os.Args) > 1 && os.Args[1] == "--json" {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
	}
	if report.Overall == "UNHEALTHY" {
		os.Exit(1)
	}
}

func newStatus(service string) HealthStatus {
	return HealthStatus{Service: service, Status: "HEALTHY", Timestamp: time.Now()}
}

func checkConfig() (*config.Config, HealthStatus) {
	status := newStatus("Configuration")
	cfg, err := config.Load()
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Failed to load: %v", err)
		return nil, status
	}
	status.Message = fmt.Sprintf("Port=%s active=%s/%s", cfg.Port, cfg.Market.ActiveSymbol, cfg.Market.ActiveTimeframe)
	return cfg, status
}

func checkProfiles(cfg *config.Config) HealthStatus {
	status := newStatus("Profiles")
	if cfg.Market.ProfilesPath == "" {
		status.Message = "built-in catalog"
		return status
	}
	catalog, err := market.LoadCatalog(cfg.Market.ProfilesPath)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = err.Error()
		return status
	}
	status.Message = fmt.Sprintf("%d symbols in %s", len(catalog.Symbols()), cfg.Market.ProfilesPath)
	return status
}

func get(ctx context.Context, url string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func checkAPIServer(ctx context.Context, base string) HealthStatus {
	status := newStatus("API Server")
	code, err := get(ctx, base+"/health", nil)
	switch {
	case err != nil:
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Not reachable: %v", err)
	case code != http.StatusOK:
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("HTTP %d", code)
	default:
		status.Message = "Running"
	}
	return status
}

func checkEngine(ctx context.Context, base string) HealthStatus {
	status := newStatus("Engine")
	var sys struct {
		Active struct {
			Symbol    string `json:"symbol"`
			Timeframe string `json:"timeframe"`
		} `json:"active"`
		Symbols      []string `json:"symbols"`
		ActiveTrades int      `json:"active_trades"`
	}
	code, err := get(ctx, base+"/api/system/status", &sys)
	if err != nil || code != http.StatusOK {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("status endpoint: code=%d err=%v", code, err)
		return status
	}

	var price struct {
		AgeMs int64 `json:"age_ms"`
	}
	if _, err := get(ctx, base+"/api/market/"+sys.Active.Symbol+"/price", &price); err == nil && price.AgeMs > 5000 {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("%s price is %dms old", sys.Active.Symbol, price.AgeMs)
		return status
	}
	status.Message = fmt.Sprintf("%d symbols, active %s/%s, %d open trades",
		len(sys.Symbols), sys.Active.Symbol, sys.Active.Timeframe, sys.ActiveTrades)
	return status
}

func checkStream(ctx context.Context, base string) HealthStatus {
	status := newStatus("Event Stream")
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, base+"/ws?topics=price_tick", nil)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("dial: %v", err)
		return status
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("no tick within 5s: %v", err)
		return status
	}
	status.Message = "receiving " + msg.Type
	return status
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
