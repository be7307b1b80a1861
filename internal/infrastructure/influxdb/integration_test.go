//go:build integration

package influxdb_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-facade/internal/facade"
	"github.com/nerrad567/gray-logic-facade/internal/graph"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/influxdb"
)

// Integration tests against the InfluxDB of docker-compose.yml.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/influxdb/...

func connectIntegration(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_HealthCheck(t *testing.T) {
	client := connectIntegration(t)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() with cancelled context should fail")
	}
}

func TestIntegration_ArchiveChanges(t *testing.T) {
	client := connectIntegration(t)

	var (
		mu       sync.Mutex
		failures []error
	)
	client.SetOnError(func(err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	})

	archiver := client.Archiver()
	now := time.Now()
	changes := []facade.Change{
		{Device: "int-boiler", Attribute: "temperature", Value: 21.5, Time: now, Quality: graph.Valid},
		{Device: "int-boiler", Attribute: "pumps", Value: []any{true, false}, Time: now, Quality: graph.Warning},
		{Device: "int-boiler", Attribute: "power", Time: now, Quality: graph.Invalid, Err: errors.New("offline")},
	}
	for _, c := range changes {
		if err := archiver.Publish(context.Background(), c); err != nil {
			t.Fatalf("Publish(%s) error = %v", c.Attribute, err)
		}
	}
	client.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(failures) > 0 {
		t.Errorf("write errors: %v", failures)
	}
}

func TestIntegration_ArchiveAfterClose(t *testing.T) {
	client := connectIntegration(t)
	archiver := client.Archiver()
	client.Close()

	err := archiver.Publish(context.Background(), facade.Change{Device: "d", Attribute: "a", Value: 1.0, Time: time.Now()})
	if !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("Publish() after Close error = %v, want ErrNotConnected", err)
	}
	client.Flush() // no-op after close
}
