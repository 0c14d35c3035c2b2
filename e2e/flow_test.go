//go:build e2e

package e2e

import (
	"context"
	"flowclient/internal/config"
	"flowclient/internal/document"
	"flowclient/internal/flow"
	"flowclient/internal/testutil"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// target describes the service the lifecycle runs against. If FLOW_E2E_URL
// is set, tests run against that instance with the job described by
// FLOW_E2E_CONF, FLOW_E2E_DSL, FLOW_E2E_PARTY_ID and FLOW_E2E_COMPONENT.
// Otherwise a scripted fake service is started.
type target struct {
	url       string
	conf      any
	dsl       any
	role      string
	partyID   string
	component string
	fake      *testutil.FlowServer
}

func getTarget(t *testing.T) target {
	t.Helper()
	if url := os.Getenv("FLOW_E2E_URL"); url != "" {
		t.Logf("Using external service: %s", url)
		conf, err := document.LoadFile(os.Getenv("FLOW_E2E_CONF"))
		if err != nil || conf == nil {
			t.Skipf("FLOW_E2E_CONF must name a runtime configuration: %v", err)
		}
		dsl, err := document.LoadFile(os.Getenv("FLOW_E2E_DSL"))
		if err != nil {
			t.Fatalf("load FLOW_E2E_DSL: %v", err)
		}
		role := os.Getenv("FLOW_E2E_ROLE")
		if role == "" {
			role = "guest"
		}
		return target{
			url:       url,
			conf:      conf,
			dsl:       dsl,
			role:      role,
			partyID:   os.Getenv("FLOW_E2E_PARTY_ID"),
			component: os.Getenv("FLOW_E2E_COMPONENT"),
		}
	}

	fake := testutil.NewFlowServer(t)
	fake.HandleJSON("/v1/job/submit", map[string]any{"retcode": 0, "retmsg": "success", "jobId": "e2e-job"})
	fake.HandleJobStatuses("waiting", "running", "running", "success")
	fake.HandleRunningTasks("reader_0", "hetero_lr_0")
	fake.HandleJSON("/v1/tracking/component/output/data/table", testutil.Envelope(0, []map[string]any{
		{"data_name": "data", "table_name": "t1", "namespace": "ns"},
	}))
	fake.HandleJSON("/v1/tracking/component/output/data/download", testutil.TarGz(t, map[string]string{
		"job/data.csv":  "id,y\n1,0\n2,1\n",
		"job/data.meta": `{"header": "id,y"}`,
	}))
	fake.HandleJSON("/v1/tracking/component/output/model", testutil.Envelope(0, map[string]any{"weight": 0.5}))
	return target{
		url:       fake.URL,
		conf:      map[string]any{"initiator": map[string]any{"role": "guest", "party_id": 9999}},
		dsl:       map[string]any{"components": map[string]any{"hetero_lr_0": map[string]any{"module": "HeteroLR"}}},
		role:      "guest",
		partyID:   "9999",
		component: "hetero_lr_0",
		fake:      fake,
	}
}

func newClient(t *testing.T, tg target) *flow.Client {
	t.Helper()
	cfg, err := config.LoadClientConfig("")
	if err != nil {
		t.Fatalf("LoadClientConfig() error = %v", err)
	}
	cfg.ServerURL = tg.url
	cfg.TempDir = t.TempDir()
	if tg.fake != nil {
		cfg.PollInterval = 5 * time.Millisecond
	}
	client, err := flow.New(cfg,
		flow.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		flow.WithProgress(io.Discard),
	)
	if err != nil {
		t.Fatalf("flow.New() error = %v", err)
	}
	return client
}

func TestJobLifecycle(t *testing.T) {
	tg := getTarget(t)
	client := newClient(t, tg)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	sub, err := client.Submit(ctx, tg.dsl, tg.conf)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	t.Logf("Submitted job %s", sub.JobID)

	code, err := client.MonitorStatus(ctx, sub.JobID, tg.role, tg.partyID)
	if err != nil {
		t.Fatalf("MonitorStatus() error = %v", err)
	}
	if code != flow.StatusSuccess {
		t.Fatalf("job %s finished with %s", sub.JobID, code)
	}

	if tg.component == "" {
		t.Log("FLOW_E2E_COMPONENT not set, skipping outputs")
		return
	}

	tables, err := client.OutputDataTable(ctx, sub.JobID, tg.component, tg.role, tg.partyID)
	if err != nil {
		t.Fatalf("OutputDataTable() error = %v", err)
	}
	t.Logf("Output tables: %s", tables.Shape())

	data, err := client.OutputData(ctx, sub.JobID, tg.component, tg.role, tg.partyID, 10)
	if err != nil {
		t.Fatalf("OutputData() error = %v", err)
	}
	if tg.fake != nil {
		sample, ok := data.Single()
		if !ok || len(sample.Data) != 3 || !sample.HasMeta {
			t.Errorf("OutputData() = %+v", data)
		}
	}

	if _, ok := client.ModelParam(ctx, sub.JobID, tg.component, tg.role, tg.partyID); !ok && tg.fake != nil {
		t.Error("ModelParam() reported no model")
	}
}

func TestConcurrentQueries(t *testing.T) {
	tg := getTarget(t)
	if tg.fake == nil {
		t.Skip("concurrency check runs against the fake service only")
	}
	tg.fake.HandleJobStatuses("running")
	client := newClient(t, tg)

	const workers = 20
	g, ctx := errgroup.WithContext(context.Background())
	for i := range workers {
		g.Go(func() error {
			q, err := client.QueryJob(ctx, fmt.Sprintf("job-%d", i), tg.role, tg.partyID)
			if err != nil {
				return err
			}
			if q.Job.Status != flow.StatusRunning {
				return fmt.Errorf("job-%d status = %s", i, q.Job.Status)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if n := tg.fake.Calls("/v1/job/query"); n != workers {
		t.Errorf("query calls = %d, want %d", n, workers)
	}
}
