package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"smtp-forensics/internal/config"
	imapclient "smtp-forensics/internal/imap"
	"smtp-forensics/internal/models"
	"smtp-forensics/internal/output"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const firstMessage = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Quarterly report\r\n" +
	"Date: Fri, 28 Jul 2023 10:15:00 +0200\r\n" +
	"Message-ID: <1@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Numbers attached next week.\r\n"

const secondMessage = "From: carol@example.org\r\n" +
	"To: dave@example.org\r\n" +
	"Subject: Lunch\r\n" +
	"Content-Type: text/html\r\n" +
	"\r\n" +
	"<p>Noon at the usual place?</p>\r\n"

const fieldTable = "1690539300.5|10.0.0.5|54321|203.0.113.9|25|MAIL FROM:<alice@example.com>|MAIL|FROM:<alice@example.com>||||120|\n" +
	"garbage\n"

func writeInputs(t *testing.T) (objectsDir, fieldsFile string) {
	t.Helper()
	root := t.TempDir()
	objectsDir = filepath.Join(root, "objects")
	require.NoError(t, os.MkdirAll(objectsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(objectsDir, "a.eml"), []byte(firstMessage), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(objectsDir, "b"), []byte(secondMessage), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(objectsDir, "tiny"), []byte("x"), 0o644))

	fieldsFile = filepath.Join(root, "fields.txt")
	require.NoError(t, os.WriteFile(fieldsFile, []byte(fieldTable), 0o644))
	return objectsDir, fieldsFile
}

func testConfig(t *testing.T) *models.Config {
	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	cfg.Input.ObjectsDir, cfg.Input.FieldsFile = writeInputs(t)
	return cfg
}

// indexStore accepts every document it is sent
func indexStore(t *testing.T, received map[string]int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut:
			w.Write([]byte(`{"acknowledged":true}`))
		case r.URL.Path == "/_bulk":
			var items []string
			scanner := bufio.NewScanner(r.Body)
			for n := 0; scanner.Scan(); n++ {
				if n%2 == 0 {
					index := strings.Split(strings.Split(scanner.Text(), `"_index":"`)[1], `"`)[0]
					received[index]++
					items = append(items, fmt.Sprintf(`{"index":{"_id":"%d","status":201}}`, n/2+1))
				}
			}
			fmt.Fprintf(w, `{"errors":false,"items":[%s]}`, strings.Join(items, ","))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
}

func TestRun(t *testing.T) {
	received := map[string]int{}
	server := indexStore(t, received)
	defer server.Close()

	cfg := testConfig(t)
	cfg.Index.URL = server.URL
	cfg.Metrics.Textfile = filepath.Join(cfg.Output.Dir, "smtpfx.prom")

	summary, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Flows.Accepted)
	assert.Equal(t, 1, summary.Flows.Rejected)
	assert.Equal(t, 2, summary.Parse.Parsed)
	assert.Equal(t, 1, summary.Parse.SkippedSmall)
	assert.Equal(t, 2, summary.Documents)
	assert.Equal(t, 2, summary.UniqueSenders)

	docs, err := output.ReadUnified(filepath.Join(cfg.Output.Dir, "final_emails.json"))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.NotNil(t, docs[0].Network.Source.IP)
	assert.Equal(t, "10.0.0.5", *docs[0].Network.Source.IP)
	assert.Equal(t, "2023-07-28T10:15:00+02:00", *docs[0].Timestamp)
	assert.Nil(t, docs[1].Network.Source.IP, "second email has no flow")
	require.NotNil(t, docs[1].Message.BodyText)
	assert.Equal(t, "Noon at the usual place?", strings.TrimSpace(*docs[1].Message.BodyText))

	for _, name := range []string{"emails.json", "network_flows.json", "summary.json", "email-data.ndjson", "email-traffic.ndjson", "smtpfx.prom"} {
		assert.FileExists(t, filepath.Join(cfg.Output.Dir, name))
	}

	assert.Equal(t, map[string]int{"email-data": 2, "email-traffic": 1}, received)
	require.Len(t, summary.Loaded, 2)
	assert.Equal(t, 2, summary.Loaded[0].Indexed)
	assert.Equal(t, 1, summary.Loaded[1].Indexed)
}

func TestRunWithoutIndex(t *testing.T) {
	cfg := testConfig(t)

	summary, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Loaded)
	assert.Equal(t, 2, summary.Prepared["email-data"].Prepared)

	raw, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "email-traffic.ndjson"))
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(raw, []byte("\n")))
}

func TestRunWithoutFieldTable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.FieldsFile = ""

	summary, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Documents)
	assert.Equal(t, 0, summary.Prepared["email-traffic"].Input)
}

func TestRunFatalInputs(t *testing.T) {
	t.Run("missing field table", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Input.FieldsFile = filepath.Join(t.TempDir(), "absent.txt")
		_, err := New(cfg).Run(context.Background())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("missing objects directory", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Input.ObjectsDir = filepath.Join(t.TempDir(), "absent")
		_, err := New(cfg).Run(context.Background())
		assert.Error(t, err)
	})

	t.Run("no source", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Input.ObjectsDir = ""
		_, err := New(cfg).Run(context.Background())
		assert.ErrorIs(t, err, ErrNoSource)
	})

	t.Run("missing capture", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Input.Pcap = filepath.Join(t.TempDir(), "absent.pcap")
		_, err := New(cfg).Run(context.Background())
		assert.Error(t, err)
	})
}

type mailbox struct {
	messages map[uint32][]byte
}

func (m *mailbox) Connect(string) error       { return nil }
func (m *mailbox) Login(string, string) error { return nil }
func (m *mailbox) SelectMailbox(string) error { return nil }
func (m *mailbox) Close() error               { return nil }
func (m *mailbox) FetchRaw(uid uint32) ([]byte, error) {
	return m.messages[uid], nil
}
func (m *mailbox) ListUIDs(time.Duration) ([]uint32, error) {
	return []uint32{1, 2}, nil
}

func TestRunFromMailbox(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.ObjectsDir = ""
	cfg.IMAP.Server = "imap.example.com:993"

	p := New(cfg)
	p.newMailbox = func(time.Duration) imapclient.Client {
		return &mailbox{messages: map[uint32][]byte{1: []byte(firstMessage), 2: []byte(secondMessage)}}
	}

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Parse.Parsed)

	emails, err := output.ReadEmails(filepath.Join(cfg.Output.Dir, "emails.json"))
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "INBOX-uid-1", emails[0].Source)
}

func TestSourceBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Second, sourceBackoff(1))
	assert.Equal(t, 10*time.Second, sourceBackoff(2))
	assert.Equal(t, sourceRetryCap, sourceBackoff(10))
}
