//go:build integration

package bulk

import (
	"context"
	"fmt"
	"testing"
	"time"

	"smtp-forensics/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startStore runs a single-node OpenSearch without the security plugin.
func startStore(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "opensearchproject/opensearch:2.11.1",
			ExposedPorts: []string{"9200/tcp"},
			Env: map[string]string{
				"discovery.type":              "single-node",
				"DISABLE_SECURITY_PLUGIN":     "true",
				"DISABLE_INSTALL_DEMO_CONFIG": "true",
				"OPENSEARCH_JAVA_OPTS":        "-Xms512m -Xmx512m",
			},
			WaitingFor: wait.ForHTTP("/").WithPort("9200/tcp").WithStartupTimeout(3 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9200/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func TestLoadIntoStore(t *testing.T) {
	ctx := context.Background()
	client := NewClient(ClientConfig{URL: startStore(t), MaxRetries: 2})

	require.NoError(t, client.EnsureIndex(ctx, "email-traffic", FlowSchema, true))

	port := 25
	docs := []models.FlowDocument{
		{FrameTimeEpoch: 1690000000, SourceIP: "10.0.0.5", DestinationIP: "10.0.0.9", DestinationPort: &port, Protocol: "SMTP", RecordType: "REQUEST"},
		{FrameTimeEpoch: 1690000001, SourceIP: "10.0.0.9", DestinationIP: "10.0.0.5", Protocol: "SMTP", RecordType: "RESPONSE"},
		{FrameTimeEpoch: 1690000002, SourceIP: "192.168.1.4", DestinationIP: "10.0.0.5", Protocol: "SMTP", RecordType: "UNKNOWN"},
	}
	prepared, prepStats := NewPreparer("email-traffic", IDSequence, FlowSchema).Prepare(Records(docs))
	require.Equal(t, 3, prepStats.Prepared)

	stats, err := Load(ctx, client, prepared, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, 3, stats.Indexed)
	assert.Zero(t, stats.Failed)

	require.NoError(t, client.Refresh(ctx, "email-traffic"))
	count, err := client.Count(ctx, "email-traffic")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// same ids overwrite instead of duplicating
	_, err = Load(ctx, client, prepared, 10, 0)
	require.NoError(t, err)
	require.NoError(t, client.Refresh(ctx, "email-traffic"))
	count, err = client.Count(ctx, "email-traffic")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
