package hub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	hverrors "github.com/botique-hub/internal/errors"
	"github.com/botique-hub/internal/types"
	"github.com/botique-hub/internal/webhook"
)

func TestCreateJobSnapshotsSkillPrice(t *testing.T) {
	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	_, skillID := env.registerTestAgent(t, ctx, "")

	job, err := env.coordinator.CreateJob(ctx, &CreateJobInput{
		SkillID:   skillID,
		InputData: json.RawMessage(`{"text":"hello"}`),
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if job.Status != types.JobStatusCreated {
		t.Errorf("new job status = %s, want created", job.Status)
	}
	if job.PriceUSDC != "1000000" {
		t.Errorf("job price = %s, want the skill price 1000000", job.PriceUSDC)
	}

	// A later skill price change must not affect the job.
	env.agents.mu.Lock()
	env.agents.skills[skillID].PriceUSDC = "9999999"
	env.agents.mu.Unlock()

	reloaded, err := env.coordinator.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if reloaded.PriceUSDC != "1000000" {
		t.Errorf("job price changed to %s after skill reprice", reloaded.PriceUSDC)
	}
}

func TestCreateJobValidation(t *testing.T) {
	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	_, skillID := env.registerTestAgent(t, ctx, "")

	tests := []struct {
		name       string
		input      CreateJobInput
		wantStatus int
	}{
		{"missing skill", CreateJobInput{InputData: json.RawMessage(`{}`)}, 400},
		{"missing input", CreateJobInput{SkillID: skillID}, 400},
		{"null input", CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`null`)}, 400},
		{"unknown skill", CreateJobInput{SkillID: "nope", InputData: json.RawMessage(`{}`)}, 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.coordinator.CreateJob(ctx, &tt.input)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := hverrors.GetHTTPStatusCode(err); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestSubmitPaymentVerificationFailureLeavesJobCreated(t *testing.T) {
	verifier := &mockVerifier{err: hverrors.NewPaymentVerificationError("transaction not found on chain", nil)}
	env := newTestEnv(verifier, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	_, skillID := env.registerTestAgent(t, ctx, "")
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})

	_, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash)
	if err == nil {
		t.Fatal("expected a verification error")
	}
	if hverrors.GetHTTPStatusCode(err) != 402 {
		t.Errorf("expected status 402, got %d", hverrors.GetHTTPStatusCode(err))
	}

	reloaded, _ := env.coordinator.GetJob(ctx, job.ID)
	if reloaded.Status != types.JobStatusCreated {
		t.Errorf("job status = %s after failed verification, want created", reloaded.Status)
	}

	// Payment can be retried once verification passes.
	verifier.mu.Lock()
	verifier.err = nil
	verifier.mu.Unlock()

	settled, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash)
	if err != nil {
		t.Fatalf("retry after fixed verification: %v", err)
	}
	if settled.Status == types.JobStatusCreated {
		t.Error("job still created after successful payment")
	}
}

func TestSubmitPaymentRejectsNonCreatedJob(t *testing.T) {
	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	_, skillID := env.registerTestAgent(t, ctx, "")
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})

	if _, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash); err != nil {
		t.Fatalf("first payment: %v", err)
	}

	_, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash)
	if err == nil {
		t.Fatal("expected a second payment to be rejected")
	}
	if hverrors.GetHTTPStatusCode(err) != 409 {
		t.Errorf("expected status 409, got %d", hverrors.GetHTTPStatusCode(err))
	}
}

func TestSubmitPaymentInlineFulfillment(t *testing.T) {
	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	result, skillID := env.registerTestAgent(t, ctx, "")
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{"n":1}`)})

	settled, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash)
	if err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	if settled.Status != types.JobStatusCompleted {
		t.Fatalf("inline job status = %s, want completed", settled.Status)
	}
	if len(settled.OutputData) == 0 {
		t.Error("completed job has no output")
	}
	if got := env.agents.totalJobs(result.Agent.ID); got != 1 {
		t.Errorf("agent stats = %d completed jobs, want 1", got)
	}
}

func TestSubmitPaymentInlineGenerationFailure(t *testing.T) {
	env := newTestEnv(&mockVerifier{}, failingGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	result, skillID := env.registerTestAgent(t, ctx, "")
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})

	settled, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash)
	if err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	if settled.Status != types.JobStatusFailed {
		t.Fatalf("job status = %s, want failed", settled.Status)
	}
	if settled.ErrorReason == nil || *settled.ErrorReason == "" {
		t.Error("failed job has no error reason")
	}
	if got := env.agents.totalJobs(result.Agent.ID); got != 0 {
		t.Errorf("agent stats incremented for a failed job: %d", got)
	}
}

func TestSubmitPaymentWebhookDeliverySuccessLeavesJobPaid(t *testing.T) {
	var mu sync.Mutex
	var gotBody []byte
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody = body
		gotSignature = r.Header.Get("X-Botique-Signature")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	ctx := context.Background()

	result, skillID := env.registerTestAgent(t, ctx, server.URL)
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{"q":"x"}`)})

	settled, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash)
	if err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	if settled.Status != types.JobStatusPaid {
		t.Errorf("job status right after payment = %s, want paid", settled.Status)
	}

	env.coordinator.Stop() // drain delivery

	reloaded, _ := env.coordinator.GetJob(ctx, job.ID)
	if reloaded.Status != types.JobStatusPaid {
		t.Errorf("delivered job status = %s, want paid until the agent completes", reloaded.Status)
	}

	mu.Lock()
	defer mu.Unlock()
	if !webhook.VerifySignature(gotBody, result.Agent.WebhookSecret, gotSignature) {
		t.Error("webhook payload signature did not verify against the agent secret")
	}

	var payload struct {
		Event string `json:"event"`
		Job   struct {
			ID        string          `json:"id"`
			Skill     string          `json:"skill"`
			PriceUSDC string          `json:"price_usdc"`
			Input     json.RawMessage `json:"input"`
		} `json:"job"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("webhook payload is not JSON: %v", err)
	}
	if payload.Event != EventJobPaid {
		t.Errorf("payload event = %q, want %q", payload.Event, EventJobPaid)
	}
	if payload.Job.ID != job.ID {
		t.Errorf("payload job id = %q, want %q", payload.Job.ID, job.ID)
	}
	if payload.Job.PriceUSDC != "1000000" {
		t.Errorf("payload price = %q, want 1000000", payload.Job.PriceUSDC)
	}

	if rec := env.deliveries.last(); rec == nil || !rec.Success {
		t.Errorf("expected a successful delivery record, got %+v", rec)
	}
}

func TestSubmitPaymentWebhookPermanentRejectionFailsJob(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	ctx := context.Background()

	_, skillID := env.registerTestAgent(t, ctx, server.URL)
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})

	if _, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	env.coordinator.Stop()

	mu.Lock()
	if calls != 1 {
		t.Errorf("4xx rejection retried: %d calls", calls)
	}
	mu.Unlock()

	reloaded, _ := env.coordinator.GetJob(ctx, job.ID)
	if reloaded.Status != types.JobStatusFailed {
		t.Errorf("job status = %s, want failed", reloaded.Status)
	}
	if reloaded.ErrorReason == nil {
		t.Error("failed job has no error reason")
	}

	rec := env.deliveries.last()
	if rec == nil || rec.Success {
		t.Fatalf("expected a failed delivery record, got %+v", rec)
	}
	if rec.Attempts != 1 {
		t.Errorf("recorded attempts = %d, want 1", rec.Attempts)
	}
}

func TestSubmitPaymentWebhookExhaustionFailsJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	ctx := context.Background()

	_, skillID := env.registerTestAgent(t, ctx, server.URL)
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})

	if _, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	env.coordinator.Stop()

	reloaded, _ := env.coordinator.GetJob(ctx, job.ID)
	if reloaded.Status != types.JobStatusFailed {
		t.Errorf("job status = %s, want failed after exhausted delivery", reloaded.Status)
	}

	rec := env.deliveries.last()
	if rec == nil || rec.Success {
		t.Fatalf("expected a failed delivery record, got %+v", rec)
	}
	if rec.Attempts != 4 {
		t.Errorf("recorded attempts = %d, want 4", rec.Attempts)
	}
}

func TestLateDeliveryOutcomeDoesNotTouchTerminalJob(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	// Single attempt so the outcome lands right after release.
	env := newTestEnv(&mockVerifier{}, echoGenerator(), &webhook.ClientConfig{
		MaxAttempts:    1,
		AttemptTimeout: 5 * time.Second,
		BaseDelay:      time.Millisecond,
	})
	ctx := context.Background()

	result, skillID := env.registerTestAgent(t, ctx, server.URL)
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})

	if _, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	// The agent completes the job while the delivery attempt is stalled.
	if _, err := env.coordinator.CompleteJob(ctx, &CompleteJobInput{
		JobID:      job.ID,
		APIKey:     result.APIKey,
		OutputData: json.RawMessage(`{"done":true}`),
	}); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	close(release)
	env.coordinator.Stop()

	reloaded, _ := env.coordinator.GetJob(ctx, job.ID)
	if reloaded.Status != types.JobStatusCompleted {
		t.Errorf("late delivery failure overwrote terminal status: %s", reloaded.Status)
	}
	if got := env.agents.totalJobs(result.Agent.ID); got != 1 {
		t.Errorf("agent stats = %d, want exactly 1", got)
	}
}

func TestAcceptJobFlow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	result, skillID := env.registerTestAgent(t, ctx, server.URL)
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})

	// Accept before payment is an illegal transition.
	if _, err := env.coordinator.AcceptJob(ctx, job.ID, result.APIKey); err == nil {
		t.Error("accepting an unpaid job should fail")
	} else if hverrors.GetHTTPStatusCode(err) != 409 {
		t.Errorf("expected status 409, got %d", hverrors.GetHTTPStatusCode(err))
	}

	if _, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	accepted, err := env.coordinator.AcceptJob(ctx, job.ID, result.APIKey)
	if err != nil {
		t.Fatalf("AcceptJob: %v", err)
	}
	if accepted.Status != types.JobStatusInProgress {
		t.Errorf("accepted job status = %s, want in_progress", accepted.Status)
	}
}

func TestAcceptJobRejectsForeignAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	_, skillID := env.registerTestAgent(t, ctx, server.URL)
	other, _ := env.registerTestAgent(t, ctx, server.URL)

	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})
	if _, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	_, err := env.coordinator.AcceptJob(ctx, job.ID, other.APIKey)
	if err == nil {
		t.Fatal("expected the foreign agent to be rejected")
	}
	if hverrors.GetHTTPStatusCode(err) != 401 {
		t.Errorf("expected status 401, got %d", hverrors.GetHTTPStatusCode(err))
	}

	reloaded, _ := env.coordinator.GetJob(ctx, job.ID)
	if reloaded.Status != types.JobStatusPaid {
		t.Errorf("rejected accept mutated the job: %s", reloaded.Status)
	}
}

func TestCompleteJobRequiresOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	result, skillID := env.registerTestAgent(t, ctx, server.URL)
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})
	if _, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	_, err := env.coordinator.CompleteJob(ctx, &CompleteJobInput{JobID: job.ID, APIKey: result.APIKey})
	if err == nil {
		t.Fatal("completion without output should fail")
	}
	if hverrors.GetHTTPStatusCode(err) != 400 {
		t.Errorf("expected status 400, got %d", hverrors.GetHTTPStatusCode(err))
	}

	reloaded, _ := env.coordinator.GetJob(ctx, job.ID)
	if reloaded.Status != types.JobStatusPaid {
		t.Errorf("rejected completion mutated the job: %s", reloaded.Status)
	}
}

func TestCompleteJobStatusHints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	result, skillID := env.registerTestAgent(t, ctx, server.URL)
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})
	if _, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	// in_progress hint needs no output.
	progressed, err := env.coordinator.CompleteJob(ctx, &CompleteJobInput{
		JobID:      job.ID,
		APIKey:     result.APIKey,
		StatusHint: types.JobStatusInProgress,
	})
	if err != nil {
		t.Fatalf("in_progress hint: %v", err)
	}
	if progressed.Status != types.JobStatusInProgress {
		t.Errorf("job status = %s, want in_progress", progressed.Status)
	}

	// Unknown hint is rejected.
	_, err = env.coordinator.CompleteJob(ctx, &CompleteJobInput{
		JobID:      job.ID,
		APIKey:     result.APIKey,
		StatusHint: types.JobStatus("archived"),
	})
	if err == nil || hverrors.GetHTTPStatusCode(err) != 400 {
		t.Errorf("unknown hint: expected status 400, got %v", err)
	}

	// Explicit completed hint with output finishes the job.
	completed, err := env.coordinator.CompleteJob(ctx, &CompleteJobInput{
		JobID:      job.ID,
		APIKey:     result.APIKey,
		OutputData: json.RawMessage(`{"ok":true}`),
		StatusHint: types.JobStatusCompleted,
	})
	if err != nil {
		t.Fatalf("completed hint: %v", err)
	}
	if completed.Status != types.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", completed.Status)
	}
}

func TestCompleteJobUnauthorizedLeavesJobUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	result, skillID := env.registerTestAgent(t, ctx, server.URL)
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})
	if _, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	_, err := env.coordinator.CompleteJob(ctx, &CompleteJobInput{
		JobID:      job.ID,
		APIKey:     "bogus",
		OutputData: json.RawMessage(`{"ok":true}`),
	})
	if err == nil || hverrors.GetHTTPStatusCode(err) != 401 {
		t.Fatalf("expected status 401, got %v", err)
	}

	reloaded, _ := env.coordinator.GetJob(ctx, job.ID)
	if reloaded.Status != types.JobStatusPaid {
		t.Errorf("unauthorized completion mutated the job: %s", reloaded.Status)
	}
	if got := env.agents.totalJobs(result.Agent.ID); got != 0 {
		t.Errorf("unauthorized completion incremented stats: %d", got)
	}
}

func TestConcurrentCompletionHasExactlyOneWinner(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	result, skillID := env.registerTestAgent(t, ctx, server.URL)
	job, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})
	if _, err := env.coordinator.SubmitPayment(ctx, job.ID, testTxHash); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.coordinator.CompleteJob(ctx, &CompleteJobInput{
				JobID:      job.ID,
				APIKey:     result.APIKey,
				OutputData: json.RawMessage(`{"winner":true}`),
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if hverrors.GetHTTPStatusCode(err) != 409 {
			t.Errorf("loser got unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly 1 winning completion, got %d", winners)
	}

	if got := env.agents.totalJobs(result.Agent.ID); got != 1 {
		t.Errorf("agent stats incremented %d times, want 1", got)
	}

	reloaded, _ := env.coordinator.GetJob(ctx, job.ID)
	if reloaded.Status != types.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", reloaded.Status)
	}
}

func TestListJobsValidation(t *testing.T) {
	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	if _, err := env.coordinator.ListJobs(ctx, "", "", 0, 0); err == nil {
		t.Error("expected missing agentId to be rejected")
	}
	if _, err := env.coordinator.ListJobs(ctx, "agent-1", types.JobStatus("bogus"), 0, 0); err == nil {
		t.Error("expected an unknown status filter to be rejected")
	}
}

func TestListAgentJobsRequiresValidKey(t *testing.T) {
	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	result, skillID := env.registerTestAgent(t, ctx, "")
	env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})

	_, err := env.coordinator.ListAgentJobs(ctx, "bogus", "", 0, 0)
	if err == nil || hverrors.GetHTTPStatusCode(err) != 401 {
		t.Errorf("expected status 401 for an unknown key, got %v", err)
	}

	jobs, err := env.coordinator.ListAgentJobs(ctx, result.APIKey, "", 0, 0)
	if err != nil {
		t.Fatalf("ListAgentJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(jobs))
	}
}

func TestListJobsFiltersByStatus(t *testing.T) {
	env := newTestEnv(&mockVerifier{}, echoGenerator(), nil)
	defer env.coordinator.Stop()
	ctx := context.Background()

	result, skillID := env.registerTestAgent(t, ctx, "")

	first, _ := env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})
	if _, err := env.coordinator.SubmitPayment(ctx, first.ID, testTxHash); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	env.coordinator.CreateJob(ctx, &CreateJobInput{SkillID: skillID, InputData: json.RawMessage(`{}`)})

	completed, err := env.coordinator.ListJobs(ctx, result.Agent.ID, types.JobStatusCompleted, 0, 0)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(completed) != 1 {
		t.Errorf("completed jobs = %d, want 1", len(completed))
	}

	all, err := env.coordinator.ListJobs(ctx, result.Agent.ID, "", 0, 0)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all jobs = %d, want 2", len(all))
	}
}
