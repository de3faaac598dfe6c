package reporter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

var logger = slog.With("component", "reporter")

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

const (
	// DefaultEndpoint is the public census collector.
	DefaultEndpoint = "https://telemetry.namelessnanashi.dev/census"

	// pings are sent every 2 hours, aligned to even UTC hours
	pingCron = "0 */2 * * *"

	defaultTimeout = 2 * time.Second
)

// Config parameterizes an embedded census reporter.
type Config struct {
	// Endpoint of the collector. TELEMETRY_ENDPOINT overrides it; empty
	// means DefaultEndpoint.
	Endpoint string
	// Project is the project name reported. Required; without it every
	// send is skipped.
	Project string
	// StateFile persists the random instance id across restarts. Empty
	// means ".telemetry_id" in the working directory. TELEMETRY_STATE_FILE
	// and TELEMETRY_STATE_DIR override it.
	StateFile string
	// OptOutEnvVar is the project-specific opt-out variable (e.g.
	// "MYAPP_TELEMETRY_OPTOUT"). The generic TELEMETRY_OPTOUT and
	// TELEMETRY variables are always honored as well.
	OptOutEnvVar string
	// Timeout bounds one send. Zero means 2 seconds.
	Timeout time.Duration
}

// --------------------------------------------------------------------------
// Reporter
// --------------------------------------------------------------------------

// Reporter sends anonymous daily-usage pings: a one-way hashed instance id
// plus a project name, nothing else. Sending is best-effort and fail-silent;
// it must never affect the embedding application.
type Reporter struct {
	config    Config
	client    *http.Client
	scheduler gocron.Scheduler
}

// New creates a reporter. It does not touch the network.
func New(config Config) *Reporter {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Reporter{
		config: config,
		client: &http.Client{Timeout: timeout},
	}
}

// payload is the reported document. The project name is sent under both
// accepted body field names for compatibility with older collectors.
type payload struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	ProjectName string `json:"projectname"`
	Project     string `json:"project"`
	Count       int    `json:"count"`
}

// Send reports one census ping. Opt-out, a missing project, and any network
// or collector failure all result in a silent no-op; the returned error is
// informational and safe to ignore.
func (r *Reporter) Send(ctx context.Context) error {
	if r.OptedOut() {
		logger.Debug("census ping skipped (opted out)")
		return nil
	}
	endpoint := r.endpoint()
	if endpoint == "" {
		logger.Debug("census ping skipped (no endpoint)")
		return nil
	}
	if r.config.Project == "" {
		logger.Debug("census ping skipped (no project name)")
		return nil
	}

	body, err := json.Marshal(payload{
		ID:          hashID(r.InstanceID()),
		Date:        time.Now().UTC().Format("2006-01-02"),
		ProjectName: r.config.Project,
		Project:     r.config.Project,
		Count:       1,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		logger.Debug("census ping failed", "err", err)
		return err
	}
	_ = resp.Body.Close()

	logger.Debug("census ping sent", "status", resp.StatusCode)
	return nil
}

// Start schedules an immediate ping plus a recurring ping every 2 hours
// aligned to even UTC hour boundaries. It returns immediately; all sends are
// fire-and-forget. Calling Start more than once is a no-op.
func (r *Reporter) Start() error {
	if r.scheduler != nil {
		return nil
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.client.Timeout)
		defer cancel()
		_ = r.Send(ctx)
	}

	if _, err := scheduler.NewJob(
		gocron.CronJob(pingCron, false),
		gocron.NewTask(send),
		gocron.WithName("census-ping"),
	); err != nil {
		return fmt.Errorf("failed to schedule census ping: %w", err)
	}

	r.scheduler = scheduler
	scheduler.Start()

	// immediate send on startup, detached like the scheduled ones
	go send()

	return nil
}

// Stop shuts the ping schedule down.
func (r *Reporter) Stop() error {
	if r.scheduler == nil {
		return nil
	}
	err := r.scheduler.Shutdown()
	r.scheduler = nil
	return err
}

// --------------------------------------------------------------------------
// Opt-out & endpoint resolution
// --------------------------------------------------------------------------

// OptedOut reports whether telemetry is disabled via environment variables.
func (r *Reporter) OptedOut() bool {
	if r.config.OptOutEnvVar != "" && envTruthy(os.Getenv(r.config.OptOutEnvVar)) {
		return true
	}
	if envTruthy(os.Getenv("TELEMETRY_OPTOUT")) {
		return true
	}
	if v, ok := os.LookupEnv("TELEMETRY"); ok && envFalsy(v) {
		return true
	}
	return false
}

func (r *Reporter) endpoint() string {
	if ep := os.Getenv("TELEMETRY_ENDPOINT"); ep != "" {
		return ep
	}
	if r.config.Endpoint != "" {
		return r.config.Endpoint
	}
	return DefaultEndpoint
}

func envTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on", "y", "t":
		return true
	}
	return false
}

func envFalsy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no", "off", "n", "f":
		return true
	}
	return false
}

// --------------------------------------------------------------------------
// Instance identity
// --------------------------------------------------------------------------

// InstanceID returns the persistent random id of this installation, creating
// the state file on first use. If the file cannot be read or written, an
// ephemeral id is used; the installation then counts as new each day, which
// over-counts slightly rather than failing.
func (r *Reporter) InstanceID() string {
	path := r.stateFile()

	if raw, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Debug("could not create state dir, using ephemeral id", "path", path, "err", err)
		return id
	}
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		logger.Debug("could not persist instance id, using ephemeral id", "path", path, "err", err)
	}
	return id
}

func (r *Reporter) stateFile() string {
	if path := os.Getenv("TELEMETRY_STATE_FILE"); path != "" {
		return path
	}
	if dir := os.Getenv("TELEMETRY_STATE_DIR"); dir != "" {
		return filepath.Join(dir, ".telemetry_id")
	}
	if r.config.StateFile != "" {
		return r.config.StateFile
	}
	return ".telemetry_id"
}

// hashID hides the raw instance id behind a one-way hash; only the digest
// ever leaves the machine.
func hashID(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
