package config

import "testing"

func TestPortsDoNotCollide(t *testing.T) {
	seen := map[int]string{}
	ports := map[string]int{
		"api":              APIServerPort,
		"vault":            VaultPort,
		"postgres":         PostgresPort,
		"redis":            RedisPort,
		"nats":             NATSPort,
		"pipeline_metrics": PipelineMetricsPort,
		"prometheus":       PrometheusPort,
		"grafana":          GrafanaPort,
		"nats_exporter":    NATSExporterPort,
	}

	for name, port := range ports {
		if other, ok := seen[port]; ok {
			t.Fatalf("port %d claimed by both %q and %q", port, other, name)
		}
		seen[port] = name
	}
}

func TestSignalStreamSharesAPIPort(t *testing.T) {
	if SignalStreamPort != APIServerPort {
		t.Errorf("SignalStreamPort = %d, want %d (shares the API listener)", SignalStreamPort, APIServerPort)
	}
}
