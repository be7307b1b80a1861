package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-facade/internal/auth"
	"github.com/nerrad567/gray-logic-facade/internal/definition"
	"github.com/nerrad567/gray-logic-facade/internal/facade"
	"github.com/nerrad567/gray-logic-facade/internal/graph"
	"github.com/nerrad567/gray-logic-facade/internal/history"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-facade/internal/watcher"
	"github.com/nerrad567/gray-logic-facade/migrations"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", "--definition", "testdata/boiler.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ config")
	assert.Contains(t, out, "✓ definition testdata/boiler.yaml: device boiler, 6 attribute(s)")
}

func TestValidateCommandRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{"unknown rule", "testdata/unknown_rule.yaml", "✗ attribute total: rule"},
		{"cycle", "testdata/cycle.yaml", "✗ graph:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "validate", "--definition", tt.file)
			require.ErrorIs(t, err, errInvalidDefinition)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestValidateCommandMissingFile(t *testing.T) {
	out, err := execute(t, "validate", "--definition", "testdata/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, out, "✗ definition:")
}

func TestDefinitionFromEnvironment(t *testing.T) {
	t.Setenv("FACADE_DEFINITION", "testdata/boiler.yaml")
	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "device boiler")
}

func TestGraphCommand(t *testing.T) {
	out, err := execute(t, "graph", "--definition", "testdata/boiler.yaml")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "NODE"), "header: %q", lines[0])
	assert.Contains(t, out, "total_flow[0]")
	assert.Contains(t, out, "total_flow[1]")
	assert.NotContains(t, out, "total_flow[2]", "spare pump is excluded")
	assert.Contains(t, out, "subnode (restricted)")
	assert.Contains(t, out, "setpoint,temperature")
	assert.Contains(t, out, facade.ClockAttribute)
}

func TestGraphCommandDot(t *testing.T) {
	out, err := execute(t, "graph", "--definition", "testdata/boiler.yaml", "--format", "dot")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, `digraph "boiler" {`), out)
	assert.Contains(t, out, `"setpoint" -> "error";`)
	assert.Contains(t, out, `"total_flow[1]" -> "total_flow";`)
	assert.Contains(t, out, `"total_flow[0]" [shape=box];`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestGraphCommandUnknownFormat(t *testing.T) {
	_, err := execute(t, "graph", "--definition", "testdata/boiler.yaml", "--format", "svg")
	assert.ErrorContains(t, err, `unknown format "svg"`)
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "facade.db")
	cfgPath := filepath.Join(dir, "facade.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  path: "+dbPath+"\n"), 0o600))

	ctx := context.Background()
	db, err := database.Open(database.Config{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, migrations.All()))
	repo := history.NewSQLiteRepository(db.DB)
	at := time.Now().Add(-time.Minute)
	require.NoError(t, repo.Record(ctx, history.Entry{Device: "boiler", Attribute: "temperature", Value: 21.5, Time: at}))
	require.NoError(t, repo.Record(ctx, history.Entry{Device: "boiler", Attribute: "setpoint", Value: 60.0, Time: at}))
	require.NoError(t, repo.Record(ctx, history.Entry{
		Device: "boiler", Attribute: "temperature", Quality: graph.Invalid, Error: "sensor offline", Time: at.Add(time.Second),
	}))
	require.NoError(t, db.Close())

	out, err := execute(t, "history", "--config", cfgPath, "--attribute", "temperature", "--since", "1h")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "error: sensor offline", "newest first")
	assert.Contains(t, lines[2], "21.5")
	assert.NotContains(t, out, "setpoint")
}

func TestTokenCommand(t *testing.T) {
	const secret = "facade-test-secret-0123456789abcdef"
	cfgPath := filepath.Join(t.TempDir(), "facade.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("api:\n  auth:\n    jwt_secret: "+secret+"\n"), 0o600))

	out, err := execute(t, "token", "--config", cfgPath, "--subject", "dashboard", "--role", "operator")
	require.NoError(t, err)

	claims, err := auth.ParseToken(strings.TrimSpace(out), secret)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.Subject)
	assert.Equal(t, auth.RoleOperator, claims.Role)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time), "default token_ttl")

	_, err = execute(t, "token", "--config", cfgPath, "--subject", "dashboard", "--role", "owner")
	assert.ErrorIs(t, err, auth.ErrInvalidRole)

	_, err = execute(t, "token", "--subject", "dashboard")
	assert.ErrorIs(t, err, auth.ErrNoSecret)
}

type changeLog struct {
	mu      sync.Mutex
	changes []facade.Change
}

func (l *changeLog) Publish(_ context.Context, c facade.Change) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
	return nil
}

func (l *changeLog) seen(device, attribute string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.changes {
		if c.Device == device && c.Attribute == attribute {
			return true
		}
	}
	return false
}

func TestServiceReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.yaml")
	write := func(content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	write("device: reloadable\nattributes:\n  - {name: setpoint, kind: local, initial: 20}\n")

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Facade.Definition = path

	changes := &changeLog{}
	svc := &service{
		cfg:      cfg,
		log:      logging.NewWithWriter(cfg.Logging, "test", io.Discard),
		registry: definition.NewRegistry(),
		options:  []facade.Option{facade.WithPublishers(changes)},
		reloads:  make(chan struct{}, 1),
	}

	def, err := definition.Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.serve(ctx, def) }()

	require.Eventually(t, func() bool { return changes.seen("reloadable", "setpoint") },
		2*time.Second, 10*time.Millisecond)
	require.NotNil(t, svc.Device())
	assert.Equal(t, "reloadable", svc.Device().Name())

	// An invalid definition is rejected and the service keeps running.
	write("device: reloadable\nattributes:\n  - {name: x, kind: logical, rule: median, bind: [setpoint]}\n")
	svc.onDefinitionChange(watcher.Change{File: path})

	write("device: renamed\nattributes:\n  - {name: offset, kind: local, initial: 5}\n")
	svc.onDefinitionChange(watcher.Change{File: path, Removed: true})
	svc.onDefinitionChange(watcher.Change{File: path})

	require.Eventually(t, func() bool { return changes.seen("renamed", "offset") },
		2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		dev := svc.Device()
		return dev != nil && dev.Name() == "renamed"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Nil(t, svc.Device())
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
}
