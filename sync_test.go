package possync_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"possync"
)

// brand is the reference record type used across the sync tests.
type brand struct {
	possync.BaseRecord
	Name string `json:"name"`
}

// mockRemote is a Remote[brand] that counts invocations and can be forced to
// fail or to block until released.
type mockRemote struct {
	mu      sync.Mutex
	calls   int
	records []brand
	err     error
	block   chan struct{} // when non-nil, List waits here before returning
	started chan struct{} // closed once the first List call has begun
}

func (m *mockRemote) List(ctx context.Context) ([]brand, error) {
	m.mu.Lock()
	m.calls++
	first := m.calls == 1
	block := m.block
	m.mu.Unlock()

	if first && m.started != nil {
		close(m.started)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

func (m *mockRemote) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// recordingNotifier remembers every published topic.
type recordingNotifier struct {
	mu     sync.Mutex
	topics []possync.Topic
}

func (n *recordingNotifier) Publish(ctx context.Context, topic possync.Topic) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
	return nil
}

func (n *recordingNotifier) Subscribe(topic possync.Topic, handler possync.Handler) (func(), error) {
	return func() {}, nil
}

func (n *recordingNotifier) published() []possync.Topic {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]possync.Topic(nil), n.topics...)
}

// failingStore wraps a Store and fails selected operations.
type failingStore struct {
	possync.Store
	failGetAll bool
	failPut    bool
	failPutAll bool
}

func (s *failingStore) GetAll(ctx context.Context, entityType, tenantID string) ([]possync.RawRecord, error) {
	if s.failGetAll {
		return nil, fmt.Errorf("simulated storage failure")
	}
	return s.Store.GetAll(ctx, entityType, tenantID)
}

func (s *failingStore) Put(ctx context.Context, entityType, tenantID string, record possync.RawRecord) error {
	if s.failPut {
		return fmt.Errorf("simulated storage failure")
	}
	return s.Store.Put(ctx, entityType, tenantID, record)
}

func (s *failingStore) PutAll(ctx context.Context, entityType, tenantID string, records []possync.RawRecord) error {
	if s.failPutAll {
		return fmt.Errorf("simulated storage failure")
	}
	return s.Store.PutAll(ctx, entityType, tenantID, records)
}

func staticResolver(tenantID string) possync.TenantResolver {
	return possync.TenantResolverFunc(func() (string, bool) {
		return tenantID, tenantID != ""
	})
}

// newTestManager builds a brand manager over a fresh in-memory store and a
// recording notifier.
func newTestManager(t *testing.T, remote possync.Remote[brand], tenantID string) (*possync.Manager[brand], possync.Store, *recordingNotifier) {
	t.Helper()
	store := possync.NewLocalStore()
	notifier := &recordingNotifier{}
	mgr, err := possync.NewManager[brand]("brand", remote, possync.Config{
		Store:    store,
		Notifier: notifier,
		Resolver: staticResolver(tenantID),
	})
	require.NoError(t, err, "Failed to create brand manager")
	return mgr, store, notifier
}

func seedBrands(t *testing.T, store possync.Store, tenantID string, brands ...brand) {
	t.Helper()
	records := make([]possync.RawRecord, 0, len(brands))
	for _, b := range brands {
		data, err := json.Marshal(b)
		require.NoError(t, err)
		records = append(records, possync.RawRecord{ID: b.ID, Data: data})
	}
	require.NoError(t, store.PutAll(context.Background(), "brand", tenantID, records))
}

func mkBrand(id, name string) brand {
	return brand{BaseRecord: possync.BaseRecord{ID: id}, Name: name}
}

func TestSync_CacheHitShortCircuit(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{records: []brand{mkBrand("b9", "Stale")}}
	mgr, store, _ := newTestManager(t, remote, "store1")

	seedBrands(t, store, "store1",
		mkBrand("b1", "Nike"), mkBrand("b2", "Puma"), mkBrand("b3", "Asics"))

	res := mgr.Sync(ctx, false)
	require.True(t, res.Success)
	assert.True(t, res.FromCache(), "Expected result to be served from cache")
	assert.Equal(t, 3, res.SyncedCount)
	assert.Len(t, res.Records, 3)
	assert.Equal(t, 0, remote.callCount(), "Remote must not be invoked on a cache hit")
}

func TestSync_CooldownRejectsSecondAttempt(t *testing.T) {
	ctx := context.Background()
	// Empty payload keeps the snapshot empty, so the second call reaches the
	// cooldown check instead of being served from cache.
	remote := &mockRemote{records: []brand{}}
	mgr, _, _ := newTestManager(t, remote, "store1")

	first := mgr.Sync(ctx, false)
	require.True(t, first.Success)
	assert.Equal(t, 0, first.SyncedCount)

	second := mgr.Sync(ctx, false)
	require.False(t, second.Success)
	assert.ErrorIs(t, second.Err, possync.ErrCooldownActive)
	assert.Equal(t, 1, remote.callCount(), "Exactly one remote invocation within the cooldown window")
}

func TestSync_CooldownExpires(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{records: []brand{}}
	store := possync.NewLocalStore()
	mgr, err := possync.NewManager[brand]("brand", remote, possync.Config{
		Store:    store,
		Notifier: &recordingNotifier{},
		Resolver: staticResolver("store1"),
		Cooldown: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	require.True(t, mgr.Sync(ctx, false).Success)
	time.Sleep(30 * time.Millisecond)
	require.True(t, mgr.Sync(ctx, false).Success)
	assert.Equal(t, 2, remote.callCount())
}

func TestSync_ForceBypassesCooldown(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{records: []brand{mkBrand("b1", "Nike")}}
	mgr, _, _ := newTestManager(t, remote, "store1")

	require.True(t, mgr.Sync(ctx, true).Success)
	res := mgr.Sync(ctx, true)
	require.True(t, res.Success)
	assert.Equal(t, 2, remote.callCount(), "Forced refreshes ignore the cooldown window")
}

func TestSync_ConcurrentRefreshDeduplicated(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	remote := &mockRemote{
		records: []brand{mkBrand("b1", "Nike")},
		block:   release,
		started: started,
	}
	mgr, _, _ := newTestManager(t, remote, "store1")

	firstDone := make(chan possync.SyncResult[brand], 1)
	go func() { firstDone <- mgr.Sync(ctx, true) }()

	// Wait until the first refresh is inside the remote call, then issue the
	// second attempt. It must be rejected synchronously, before the first
	// network call completes.
	<-started
	second := mgr.Sync(ctx, true)
	require.False(t, second.Success)
	assert.ErrorIs(t, second.Err, possync.ErrSyncInProgress)

	close(release)
	first := <-firstDone
	require.True(t, first.Success)
	assert.Equal(t, 1, remote.callCount(), "Exactly one remote invocation for concurrent syncs")

	// With the first refresh settled, the tenant is no longer in flight.
	res := mgr.Sync(ctx, true)
	assert.True(t, res.Success, "In-flight marker must be cleared after completion")
}

func TestSync_InFlightClearedAfterFailure(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{err: fmt.Errorf("connection refused")}
	mgr, _, _ := newTestManager(t, remote, "store1")

	res := mgr.Sync(ctx, true)
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, possync.ErrRemoteFailure)

	// A failed refresh must not wedge the tenant in "in progress".
	res = mgr.Sync(ctx, true)
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, possync.ErrRemoteFailure)
	assert.Equal(t, 2, remote.callCount())
}

func TestSync_FailurePreservesCache(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{err: errors.New("boom")}
	mgr, store, _ := newTestManager(t, remote, "store1")

	seedBrands(t, store, "store1", mkBrand("b1", "Nike"), mkBrand("b2", "Puma"))

	res := mgr.Sync(ctx, true)
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, possync.ErrRemoteFailure)

	cached := mgr.CachedOnly(ctx)
	require.Len(t, cached, 2, "Failed refresh must leave the snapshot untouched")
	assert.Equal(t, "b1", cached[0].ID)
	assert.Equal(t, "b2", cached[1].ID)
}

func TestSync_EmptyPayloadIsAuthoritative(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{records: []brand{}}
	mgr, store, _ := newTestManager(t, remote, "store1")

	seedBrands(t, store, "store1", mkBrand("b1", "Nike"))

	res := mgr.Sync(ctx, true)
	require.True(t, res.Success)
	assert.Equal(t, 0, res.SyncedCount)
	assert.Empty(t, mgr.CachedOnly(ctx), "Empty successful payload replaces the snapshot")
}

func TestSync_NoTenant(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{records: []brand{mkBrand("b1", "Nike")}}
	mgr, _, _ := newTestManager(t, remote, "")

	res := mgr.Sync(ctx, false)
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, possync.ErrNoTenant)
	assert.Equal(t, 0, remote.callCount(), "No cache or network access without a resolved tenant")
}

func TestSync_ScenarioFirstFetch(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{records: []brand{mkBrand("b1", "Nike"), mkBrand("b2", "Puma")}}
	mgr, _, notifier := newTestManager(t, remote, "acme")

	res := mgr.Sync(ctx, false)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.SyncedCount)
	assert.False(t, res.FromCache())
	require.Len(t, res.Records, 2)
	assert.Equal(t, "Nike", res.Records[0].Name)

	cached := mgr.CachedOnly(ctx)
	require.Len(t, cached, 2)

	topics := notifier.published()
	require.Len(t, topics, 1)
	assert.Equal(t, possync.Topic{EntityType: "brand", TenantID: "acme"}, topics[0])
}

func TestSync_ReadPathStoreFailureDegradesToFetch(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{records: []brand{mkBrand("b1", "Nike")}}
	store := &failingStore{Store: possync.NewLocalStore(), failGetAll: true}
	mgr, err := possync.NewManager[brand]("brand", remote, possync.Config{
		Store:    store,
		Notifier: &recordingNotifier{},
		Resolver: staticResolver("store1"),
	})
	require.NoError(t, err)

	res := mgr.Sync(ctx, false)
	require.True(t, res.Success, "Read-path store failure degrades to a network fetch")
	assert.Equal(t, 1, remote.callCount())
	assert.Equal(t, 1, res.SyncedCount)
}

func TestSync_SnapshotWriteFailureStillReturnsFetchedRecords(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{records: []brand{mkBrand("b1", "Nike")}}
	store := &failingStore{Store: possync.NewLocalStore(), failPutAll: true}
	notifier := &recordingNotifier{}
	mgr, err := possync.NewManager[brand]("brand", remote, possync.Config{
		Store:    store,
		Notifier: notifier,
		Resolver: staticResolver("store1"),
	})
	require.NoError(t, err)

	res := mgr.Sync(ctx, true)
	require.True(t, res.Success, "Network result is authoritative even when the mirror write fails")
	assert.Equal(t, 1, res.SyncedCount)
	assert.Empty(t, notifier.published(), "No publish when the snapshot was not actually written")
}

func TestRecordSaved_WriteThrough(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{}
	mgr, _, notifier := newTestManager(t, remote, "acme")

	res := mgr.RecordSaved(ctx, mkBrand("b1", "Nike"))
	require.True(t, res.Success)
	assert.Equal(t, 1, res.SyncedCount)
	assert.Equal(t, 0, remote.callCount(), "Write-through never calls the network")

	cached := mgr.CachedOnly(ctx)
	require.Len(t, cached, 1)
	assert.Equal(t, "Nike", cached[0].Name)
	assert.Len(t, notifier.published(), 1)
}

func TestRecordSaved_Idempotent(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t, &mockRemote{}, "acme")

	require.True(t, mgr.RecordSaved(ctx, mkBrand("b1", "Nike")).Success)
	require.True(t, mgr.RecordSaved(ctx, mkBrand("b1", "Nike Inc")).Success)

	cached := mgr.CachedOnly(ctx)
	require.Len(t, cached, 1, "Saving the same id twice must not duplicate the record")
	assert.Equal(t, "Nike Inc", cached[0].Name)
}

func TestRecordSaved_StoreFailureReported(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: possync.NewLocalStore(), failPut: true}
	mgr, err := possync.NewManager[brand]("brand", &mockRemote{}, possync.Config{
		Store:    store,
		Notifier: &recordingNotifier{},
		Resolver: staticResolver("acme"),
	})
	require.NoError(t, err)

	res := mgr.RecordSaved(ctx, mkBrand("b1", "Nike"))
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, possync.ErrStoreFailure, "Write-through store failures are surfaced")
}

func TestRecordDeleted_ScenarioMirrorAndNotify(t *testing.T) {
	ctx := context.Background()
	remote := &mockRemote{records: []brand{mkBrand("b1", "Nike"), mkBrand("b2", "Puma")}}
	mgr, _, notifier := newTestManager(t, remote, "acme")

	require.True(t, mgr.Sync(ctx, false).Success)

	res := mgr.RecordDeleted(ctx, "b1")
	require.True(t, res.Success)

	cached := mgr.CachedOnly(ctx)
	require.Len(t, cached, 1)
	assert.Equal(t, "b2", cached[0].ID)

	topics := notifier.published()
	require.NotEmpty(t, topics)
	assert.Equal(t, possync.Topic{EntityType: "brand", TenantID: "acme"}, topics[len(topics)-1])
}

func TestCachedOnly_NoTenantReturnsEmpty(t *testing.T) {
	mgr, _, _ := newTestManager(t, &mockRemote{}, "")
	assert.Empty(t, mgr.CachedOnly(context.Background()))
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := possync.NewLocalStore()
	notifier := &recordingNotifier{}

	newMgr := func(entityType, tenantID string) *possync.Manager[brand] {
		mgr, err := possync.NewManager[brand](entityType, &mockRemote{}, possync.Config{
			Store:    store,
			Notifier: notifier,
			Resolver: staticResolver(tenantID),
		})
		require.NoError(t, err)
		return mgr
	}

	for _, entityType := range []string{"brand", "category", "unit", "customer"} {
		mgrA := newMgr(entityType, "tenantA")
		mgrB := newMgr(entityType, "tenantB")

		require.True(t, mgrA.RecordSaved(ctx, mkBrand("a1", "OnlyA")).Success)

		assert.Emptyf(t, mgrB.CachedOnly(ctx), "%s records for tenantA leaked into tenantB", entityType)
		require.Lenf(t, mgrA.CachedOnly(ctx), 1, "%s record for tenantA missing", entityType)
	}
}

func TestNewManager_Validation(t *testing.T) {
	valid := possync.Config{
		Store:    possync.NewLocalStore(),
		Notifier: possync.NewLocalNotifier(),
		Resolver: staticResolver("t"),
	}

	_, err := possync.NewManager[brand]("", &mockRemote{}, valid)
	assert.Error(t, err, "Empty entity type must be rejected")

	_, err = possync.NewManager[brand]("brand", nil, valid)
	assert.ErrorIs(t, err, possync.ErrRemoteNotSet)

	for name, cfg := range map[string]possync.Config{
		"missing store":    {Notifier: valid.Notifier, Resolver: valid.Resolver},
		"missing notifier": {Store: valid.Store, Resolver: valid.Resolver},
		"missing resolver": {Store: valid.Store, Notifier: valid.Notifier},
	} {
		_, err := possync.NewManager[brand]("brand", &mockRemote{}, cfg)
		assert.Errorf(t, err, "Expected constructor failure for %s", name)
	}
}
