// AngelaMos | 2026
// service_test.go

package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siliconforge/eda-backend/internal/account"
	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/entitlement"
	"github.com/siliconforge/eda-backend/internal/plan"
	"github.com/siliconforge/eda-backend/internal/product"
	"github.com/siliconforge/eda-backend/internal/project"
	"github.com/siliconforge/eda-backend/internal/worker"
)

type fakeLogs struct {
	mu        sync.Mutex
	entries   map[string]*ToolLogEntry
	createErr error
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{entries: map[string]*ToolLogEntry{}}
}

func (f *fakeLogs) Create(_ context.Context, entry *ToolLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	clone := *entry
	f.entries[entry.JobID] = &clone
	return nil
}

func (f *fakeLogs) GetByJobID(
	_ context.Context,
	jobID string,
) (*ToolLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[jobID]
	if !ok {
		return nil, core.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (f *fakeLogs) ListByUser(
	_ context.Context,
	userID string,
	limit int,
) ([]ToolLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []ToolLogEntry{}
	for _, entry := range f.entries {
		if entry.UserID == userID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (f *fakeLogs) MarkCompleted(
	_ context.Context,
	jobID string,
	details Details,
	cost float64,
	completedAt time.Time,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[jobID]
	if !ok || entry.Status != StatusInitiated {
		return core.ErrNotFound
	}
	entry.Status = StatusCompleted
	for k, v := range details {
		entry.Details[k] = v
	}
	entry.Cost = &cost
	entry.CompletedAt = &completedAt
	return nil
}

func (f *fakeLogs) MarkFailed(
	_ context.Context,
	jobID string,
	details Details,
	completedAt time.Time,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[jobID]
	if !ok || entry.Status != StatusInitiated {
		return core.ErrNotFound
	}
	entry.Status = StatusFailed
	for k, v := range details {
		entry.Details[k] = v
	}
	entry.CompletedAt = &completedAt
	return nil
}

type fakeProjects struct {
	projects  map[string]*project.Project
	recordErr error
	records   int
}

func (f *fakeProjects) GetByID(
	_ context.Context,
	id string,
) (*project.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return p, nil
}

func (f *fakeProjects) RecordToolOutput(
	_ context.Context,
	projectID, toolName, jobID string,
	file project.FileMetadata,
	output project.ToolOutput,
) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.records++
	return nil
}

type fakeAccounts struct {
	user       *account.User
	consumed   int
	seeded     int
	consumeErr error
}

func (f *fakeAccounts) Get(
	_ context.Context,
	id string,
) (*account.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, core.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeAccounts) SeedToolGrant(
	_ context.Context,
	userID, tool string,
	grant plan.ToolGrant,
) error {
	if f.user.ActiveToolAccess == nil {
		f.user.ActiveToolAccess = plan.ToolAccess{}
	}
	if _, ok := f.user.ActiveToolAccess[tool]; !ok {
		f.user.ActiveToolAccess[tool] = grant
		f.seeded++
	}
	return nil
}

// ConsumeToolUse mirrors the cached-counter decrement: a missing entry
// or a spent counter consumes nothing.
func (f *fakeAccounts) ConsumeToolUse(
	_ context.Context,
	userID, tool string,
	limit int,
) error {
	if limit == plan.LimitUnlimited {
		return nil
	}
	if f.consumeErr != nil {
		return f.consumeErr
	}
	grant, ok := f.user.ActiveToolAccess[tool]
	if !ok || grant.Limit <= 0 {
		return core.ErrUsageExhausted
	}
	grant.Limit--
	f.user.ActiveToolAccess[tool] = grant
	f.consumed++
	return nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (f *fakeBlobs) Put(
	_ context.Context,
	key string,
	reader io.Reader,
	size int64,
	contentType string,
) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeBlobs) Get(
	_ context.Context,
	key string,
) (io.ReadCloser, error) {
	return nil, core.ErrNotFound
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) PresignGet(
	_ context.Context,
	key string,
	expiry time.Duration,
) (string, error) {
	return "https://blobs.test/" + key, nil
}

func (f *fakeBlobs) Ping(_ context.Context) error { return nil }

type fakeGenerator struct {
	reply string
	err   error
}

func (f *fakeGenerator) Generate(
	_ context.Context,
	system, prompt string,
) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// inlineSubmitter executes the task synchronously, so tests observe the
// terminal state right after Start returns.
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(task worker.Task) error {
	task(context.Background())
	return nil
}

// parkedSubmitter accepts tasks without running them.
type parkedSubmitter struct {
	tasks []worker.Task
}

func (p *parkedSubmitter) Submit(task worker.Task) error {
	p.tasks = append(p.tasks, task)
	return nil
}

type fullSubmitter struct{}

func (fullSubmitter) Submit(worker.Task) error {
	return worker.ErrQueueFull
}

type emptyProducts struct{}

func (emptyProducts) GetByID(
	_ context.Context,
	id string,
) (*product.Product, error) {
	return nil, core.ErrNotFound
}

const (
	testUserID    = "11111111-1111-4111-8111-111111111111"
	testProjectID = "22222222-2222-4222-8222-222222222222"
)

func strPtr(s string) *string { return &s }

func premiumUser() *account.User {
	return &account.User{
		ID:   testUserID,
		Tier: plan.TierPremium,
		ActiveToolAccess: plan.ToolAccess{
			plan.ToolPCBDesign:          {HasAccess: true, Limit: plan.LimitUnlimited},
			plan.ToolChipSynthesis:      {HasAccess: true, Limit: plan.LimitUnlimited},
			plan.ToolPlatformSimulation: {HasAccess: true, Limit: plan.LimitUnlimited},
		},
	}
}

func testProject() *project.Project {
	return &project.Project{ID: testProjectID, UserID: testUserID}
}

type fixture struct {
	svc      *Service
	logs     *fakeLogs
	projects *fakeProjects
	accounts *fakeAccounts
	blobs    *fakeBlobs
	gen      *fakeGenerator
}

func newFixture(submitter Submitter) *fixture {
	f := &fixture{
		logs: newFakeLogs(),
		projects: &fakeProjects{
			projects: map[string]*project.Project{
				testProjectID: testProject(),
			},
		},
		accounts: &fakeAccounts{user: premiumUser()},
		blobs:    newFakeBlobs(),
		gen:      &fakeGenerator{reply: "analysis ok"},
	}

	f.svc = NewService(ServiceConfig{
		Logs:          f.logs,
		Projects:      f.projects,
		Accounts:      f.accounts,
		Resolver:      entitlement.NewResolver(emptyProducts{}),
		Blobs:         f.blobs,
		Generator:     f.gen,
		Jobs:          submitter,
		PresignExpiry: time.Hour,
	}).WithStepDelay(0)

	return f
}

func TestStartReturnsInitiated(t *testing.T) {
	parked := &parkedSubmitter{}
	f := newFixture(parked)

	resp, err := f.svc.Start(context.Background(), testUserID, "pcb",
		RunRequest{ProjectID: testProjectID})
	require.NoError(t, err)

	assert.Equal(t, StatusInitiated, resp.Status)
	assert.True(t, strings.HasPrefix(resp.JobID, "pcb_job_"+testProjectID+"_"),
		"job id %q", resp.JobID)
	assert.Len(t, parked.tasks, 1)

	status, err := f.svc.Status(context.Background(), testUserID, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusInitiated, status.Status)
}

func TestExecuteSuccess(t *testing.T) {
	f := newFixture(inlineSubmitter{})

	resp, err := f.svc.Start(context.Background(), testUserID, "pcb",
		RunRequest{
			ProjectID:  testProjectID,
			Parameters: map[string]any{"layers": 4},
		})
	require.NoError(t, err)

	status, err := f.svc.Status(context.Background(), testUserID, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.Status)
	require.NotNil(t, status.Cost)
	assert.InDelta(t, 0.50, *status.Cost, 1e-9)
	assert.Equal(t, "ok", status.Details["aiStatus"])
	assert.NotNil(t, status.CompletedAt)

	assert.Equal(t, 1, f.projects.records, "project ledger must be written")

	dl, err := f.svc.DownloadURL(context.Background(), testUserID, resp.JobID)
	require.NoError(t, err)
	assert.NotEmpty(t, dl.DownloadURL)
	assert.Contains(t, dl.DownloadURL,
		"project-outputs/"+testProjectID+"/"+resp.JobID+"/")
}

func TestExecuteFailureIsTerminal(t *testing.T) {
	f := newFixture(inlineSubmitter{})
	f.gen.err = errors.New("model overloaded")

	resp, err := f.svc.Start(context.Background(), testUserID, "chip",
		RunRequest{ProjectID: testProjectID})
	require.NoError(t, err, "Start already returned before the failure")

	status, err := f.svc.Status(context.Background(), testUserID, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status.Status)
	assert.Contains(t, status.Details["error"], "model overloaded")
	assert.Nil(t, status.Cost)

	_, err = f.svc.DownloadURL(context.Background(), testUserID, resp.JobID)
	require.Error(t, err)
	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestExecuteFailureAfterUploadRecordsOrphans(t *testing.T) {
	f := newFixture(inlineSubmitter{})
	f.projects.recordErr = errors.New("write conflict")

	resp, err := f.svc.Start(context.Background(), testUserID, "platform",
		RunRequest{ProjectID: testProjectID})
	require.NoError(t, err)

	status, err := f.svc.Status(context.Background(), testUserID, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status.Status)

	orphans, ok := status.Details["orphanedArtifacts"].([]string)
	require.True(t, ok, "orphaned artifact keys must be recorded")
	require.Len(t, orphans, 1)

	// The blob survives the failed job; cleanup is deferred, not inline.
	f.blobs.mu.Lock()
	_, exists := f.blobs.objects[orphans[0]]
	f.blobs.mu.Unlock()
	assert.True(t, exists)
}

func TestStartDeniesFreeTier(t *testing.T) {
	f := newFixture(&parkedSubmitter{})
	f.accounts.user = &account.User{ID: testUserID, Tier: plan.TierFree}

	_, err := f.svc.Start(context.Background(), testUserID, "pcb",
		RunRequest{ProjectID: testProjectID})
	require.Error(t, err)

	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ENTITLEMENT_DENIED", appErr.Code)
}

func TestStartDeniesExpiredMembership(t *testing.T) {
	f := newFixture(&parkedSubmitter{})
	expired := time.Now().Add(-time.Hour)
	f.accounts.user.MembershipExpiresAt = &expired

	_, err := f.svc.Start(context.Background(), testUserID, "pcb",
		RunRequest{ProjectID: testProjectID})
	require.Error(t, err)

	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PAYMENT_REQUIRED", appErr.Code)
}

func TestStartDeniesSpentCounter(t *testing.T) {
	f := newFixture(&parkedSubmitter{})
	f.accounts.user = &account.User{
		ID:   testUserID,
		Tier: plan.TierBasic,
		ActiveToolAccess: plan.ToolAccess{
			plan.ToolPCBDesign: {HasAccess: true, Limit: 0},
		},
	}

	_, err := f.svc.Start(context.Background(), testUserID, "pcb",
		RunRequest{ProjectID: testProjectID})
	require.Error(t, err)

	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PAYMENT_REQUIRED", appErr.Code)
}

func TestStartRunsOnBaseTierAfterProductDeleted(t *testing.T) {
	f := newFixture(&parkedSubmitter{})
	f.accounts.user = &account.User{
		ID:               testUserID,
		Tier:             plan.TierBasic,
		CustomProductID:  strPtr("prod-gone"),
		ActiveToolAccess: plan.ToolAccess{},
	}

	resp, err := f.svc.Start(context.Background(), testUserID, "pcb",
		RunRequest{ProjectID: testProjectID})
	require.NoError(t, err,
		"a deleted product falls back to base-tier rules, not a denial")

	assert.Equal(t, StatusInitiated, resp.Status)
	assert.Equal(t, 1, f.accounts.seeded)
	assert.Equal(t, 1, f.accounts.consumed)

	// The plan grant is now cached, minus the spent use.
	grant := f.accounts.user.ActiveToolAccess[plan.ToolPCBDesign]
	assert.True(t, grant.HasAccess)
	assert.Equal(t, 4, grant.Limit)
}

func TestStartFailedLogInsertSpendsNothing(t *testing.T) {
	f := newFixture(&parkedSubmitter{})
	f.accounts.user = &account.User{
		ID:   testUserID,
		Tier: plan.TierBasic,
		ActiveToolAccess: plan.ToolAccess{
			plan.ToolPCBDesign: {HasAccess: true, Limit: 3},
		},
	}
	f.logs.createErr = errors.New("insert failed")

	_, err := f.svc.Start(context.Background(), testUserID, "pcb",
		RunRequest{ProjectID: testProjectID})
	require.Error(t, err)

	assert.Zero(t, f.accounts.consumed,
		"no use may be spent when the job record never existed")
}

func TestStartExhaustedAtMeteringFailsJob(t *testing.T) {
	f := newFixture(&parkedSubmitter{})
	f.accounts.user = &account.User{
		ID:   testUserID,
		Tier: plan.TierBasic,
		ActiveToolAccess: plan.ToolAccess{
			plan.ToolPCBDesign: {HasAccess: true, Limit: 1},
		},
	}
	// A concurrent run spends the last use between resolution and the
	// decrement.
	f.accounts.consumeErr = core.ErrUsageExhausted

	_, err := f.svc.Start(context.Background(), testUserID, "pcb",
		RunRequest{ProjectID: testProjectID})
	require.Error(t, err)

	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PAYMENT_REQUIRED", appErr.Code)

	// The already-written entry is closed out as failed.
	var entry *ToolLogEntry
	f.logs.mu.Lock()
	for _, e := range f.logs.entries {
		entry = e
	}
	f.logs.mu.Unlock()
	require.NotNil(t, entry)
	assert.Equal(t, StatusFailed, entry.Status)
}

func TestStartConsumesMeteredUse(t *testing.T) {
	f := newFixture(&parkedSubmitter{})
	f.accounts.user = &account.User{
		ID:   testUserID,
		Tier: plan.TierBasic,
		ActiveToolAccess: plan.ToolAccess{
			plan.ToolPCBDesign: {HasAccess: true, Limit: 3},
		},
	}

	_, err := f.svc.Start(context.Background(), testUserID, "pcb",
		RunRequest{ProjectID: testProjectID})
	require.NoError(t, err)
	assert.Equal(t, 1, f.accounts.consumed)
}

func TestStartRejectsForeignProject(t *testing.T) {
	f := newFixture(&parkedSubmitter{})
	f.projects.projects[testProjectID].UserID = "someone-else"

	_, err := f.svc.Start(context.Background(), testUserID, "pcb",
		RunRequest{ProjectID: testProjectID})
	require.Error(t, err)

	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "FORBIDDEN", appErr.Code)
}

func TestStartUnknownToolRoute(t *testing.T) {
	f := newFixture(&parkedSubmitter{})

	_, err := f.svc.Start(context.Background(), testUserID, "quantum",
		RunRequest{ProjectID: testProjectID})
	require.Error(t, err)

	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestStartFullQueueFailsJob(t *testing.T) {
	f := newFixture(fullSubmitter{})

	_, err := f.svc.Start(context.Background(), testUserID, "pcb",
		RunRequest{ProjectID: testProjectID})
	require.Error(t, err)

	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WORKER_BUSY", appErr.Code)

	// The initiated entry is closed out as failed, not left dangling.
	var entry *ToolLogEntry
	f.logs.mu.Lock()
	for _, e := range f.logs.entries {
		entry = e
	}
	f.logs.mu.Unlock()
	require.NotNil(t, entry)
	assert.Equal(t, StatusFailed, entry.Status)
}

func TestStatusScopedToOwner(t *testing.T) {
	f := newFixture(&parkedSubmitter{})

	resp, err := f.svc.Start(context.Background(), testUserID, "pcb",
		RunRequest{ProjectID: testProjectID})
	require.NoError(t, err)

	_, err = f.svc.Status(context.Background(), "other-user", resp.JobID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestJobIDFormat(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(&parkedSubmitter{})
	f.svc.WithClock(func() time.Time { return at })

	resp, err := f.svc.Start(context.Background(), testUserID, "chip",
		RunRequest{ProjectID: testProjectID})
	require.NoError(t, err)

	expected := fmt.Sprintf("chip_job_%s_%d", testProjectID, at.UnixMilli())
	assert.Equal(t, expected, resp.JobID)
}
