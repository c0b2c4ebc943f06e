package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"datahub/domain/sheet"
	"datahub/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type pole struct {
	Label string
	Lat   float64
}

func polePlan(policy Policy) Plan[pole] {
	return Plan[pole]{
		Table:     "poles",
		KeyColumn: "label",
		Key:       func(p pole) string { return p.Label },
		Project: func(p pole) ports.Row {
			return ports.Row{
				Key:     p.Label,
				Columns: []ports.Column{{Name: "label", Value: p.Label}, {Name: "lat", Value: p.Lat}},
				Payload: sheet.Record{"label": p.Label, "lat": p.Lat},
			}
		},
		Policy:      policy,
		InsertChunk: 4,
		UpdateChunk: 3,
	}
}

// memStore is an in-memory RecordStore keyed by table and key.
type memStore struct {
	mu          sync.Mutex
	rows        map[string]map[string]ports.Row
	failInsert  map[string]bool
	existsCalls int

	inFlight    int32
	maxInFlight int32
	delay       time.Duration
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]map[string]ports.Row{}, failInsert: map[string]bool{}}
}

func (m *memStore) ExistingKeys(ctx context.Context, table, keyColumn string, keys []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	out := map[string]struct{}{}
	for _, k := range keys {
		if _, ok := m.rows[table][k]; ok {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

func (m *memStore) track() func() {
	n := atomic.AddInt32(&m.inFlight, 1)
	for {
		cur := atomic.LoadInt32(&m.maxInFlight)
		if n <= cur || atomic.CompareAndSwapInt32(&m.maxInFlight, cur, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return func() { atomic.AddInt32(&m.inFlight, -1) }
}

func (m *memStore) Insert(ctx context.Context, table string, row ports.Row) error {
	defer m.track()()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert[row.Key] {
		return fmt.Errorf("duplicate key value violates unique constraint")
	}
	if m.rows[table] == nil {
		m.rows[table] = map[string]ports.Row{}
	}
	m.rows[table][row.Key] = row
	return nil
}

func (m *memStore) Update(ctx context.Context, table, keyColumn string, row ports.Row, columns []string) error {
	defer m.track()()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[table][row.Key]; !ok {
		return fmt.Errorf("no row with key %s", row.Key)
	}
	m.rows[table][row.Key] = row
	return nil
}

func (m *memStore) Count(ctx context.Context, table string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[table]), nil
}

func (m *memStore) CountBy(ctx context.Context, table, column string) (map[string]int, error) {
	return nil, nil
}

func (m *memStore) Reset(ctx context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.rows[table])
	delete(m.rows, table)
	return int64(n), nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }

func poles(n int) []pole {
	out := make([]pole, n)
	for i := range out {
		out[i] = pole{Label: fmt.Sprintf("P%d", i+1), Lat: -26 - float64(i)/100}
	}
	return out
}

func TestUpsertIsIdempotent(t *testing.T) {
	store := newMemStore()
	batch := poles(10)
	ctx := context.Background()

	first, err := Upsert(ctx, store, polePlan(Mutable), batch)
	require.NoError(t, err)
	assert.Equal(t, 10, first.Inserted)
	assert.Equal(t, 0, first.Updated)

	second, err := Upsert(ctx, store, polePlan(Mutable), batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 10, second.Updated)

	count, _ := store.Count(ctx, "poles")
	assert.Equal(t, 10, count)
}

func TestUpsertInsertsNewAndUpdatesExisting(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	_, err := Upsert(ctx, store, polePlan(Mutable), []pole{{Label: "P1", Lat: -26.1}})
	require.NoError(t, err)

	res, err := Upsert(ctx, store, polePlan(Mutable), []pole{{Label: "P1", Lat: -26.15}, {Label: "P3", Lat: -26.3}})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, -26.15, store.rows["poles"]["P1"].Payload["lat"])
}

func TestUpsertAppendOnlyNeverUpdates(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	_, err := Upsert(ctx, store, polePlan(AppendOnly), []pole{{Label: "DR1", Lat: 1}, {Label: "DR2", Lat: 2}})
	require.NoError(t, err)

	res, err := Upsert(ctx, store, polePlan(AppendOnly), []pole{{Label: "DR2", Lat: 99}, {Label: "DR3", Lat: 3}})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2.0, store.rows["poles"]["DR2"].Payload["lat"])
	count, _ := store.Count(ctx, "poles")
	assert.Equal(t, 3, count)
}

func TestUpsertIsolatesRecordFailures(t *testing.T) {
	store := newMemStore()
	store.failInsert["P7"] = true

	res, err := Upsert(context.Background(), store, polePlan(Mutable), poles(10))

	require.NoError(t, err)
	assert.Equal(t, 9, res.Inserted)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "P7", res.Failures[0].Key)
	assert.Equal(t, OpInsert, res.Failures[0].Op)
}

func TestUpsertQueriesExistenceOnce(t *testing.T) {
	store := newMemStore()
	_, err := Upsert(context.Background(), store, polePlan(Mutable), poles(25))
	require.NoError(t, err)
	assert.Equal(t, 1, store.existsCalls)
}

func TestUpsertBoundsConcurrencyByChunk(t *testing.T) {
	store := newMemStore()
	store.delay = 2 * time.Millisecond
	plan := polePlan(Mutable)
	plan.InsertChunk = 5
	plan.Parallelism = 2

	res, err := Upsert(context.Background(), store, plan, poles(12))
	require.NoError(t, err)
	assert.Equal(t, 12, res.Inserted)
	assert.LessOrEqual(t, atomic.LoadInt32(&store.maxInFlight), int32(2))
}

func TestUpsertDuplicateKeysInBatch(t *testing.T) {
	store := newMemStore()
	batch := []pole{{Label: "P1", Lat: 1}, {Label: "P1", Lat: 2}}

	res, err := Upsert(context.Background(), store, polePlan(Mutable), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	count, _ := store.Count(context.Background(), "poles")
	assert.Equal(t, 1, count)

	appendStore := newMemStore()
	res, err = Upsert(context.Background(), appendStore, polePlan(AppendOnly), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Skipped)
}

func TestUpsertSkipsEmptyKeys(t *testing.T) {
	store := newMemStore()
	res, err := Upsert(context.Background(), store, polePlan(Mutable), []pole{{Label: ""}, {Label: "P1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Skipped)
}

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) ExistingKeys(ctx context.Context, table, keyColumn string, keys []string) (map[string]struct{}, error) {
	args := m.Called(ctx, table, keyColumn, keys)
	existing, _ := args.Get(0).(map[string]struct{})
	return existing, args.Error(1)
}

func (m *MockRecordStore) Insert(ctx context.Context, table string, row ports.Row) error {
	return m.Called(ctx, table, row).Error(0)
}

func (m *MockRecordStore) Update(ctx context.Context, table, keyColumn string, row ports.Row, columns []string) error {
	return m.Called(ctx, table, keyColumn, row, columns).Error(0)
}

func (m *MockRecordStore) Count(ctx context.Context, table string) (int, error) {
	args := m.Called(ctx, table)
	return args.Int(0), args.Error(1)
}

func (m *MockRecordStore) CountBy(ctx context.Context, table, column string) (map[string]int, error) {
	args := m.Called(ctx, table, column)
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockRecordStore) Reset(ctx context.Context, table string) (int64, error) {
	args := m.Called(ctx, table)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRecordStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestUpsertFailsWhenExistenceQueryFails(t *testing.T) {
	store := new(MockRecordStore)
	store.On("ExistingKeys", mock.Anything, "poles", "label", []string{"P1"}).
		Return(nil, errors.New("connection reset"))

	_, err := Upsert(context.Background(), store, polePlan(Mutable), []pole{{Label: "P1"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpsertPassesUpdateColumns(t *testing.T) {
	store := new(MockRecordStore)
	plan := polePlan(Mutable)
	plan.UpdateColumns = []string{"lat"}

	store.On("ExistingKeys", mock.Anything, "poles", "label", []string{"P1"}).
		Return(map[string]struct{}{"P1": {}}, nil)
	store.On("Update", mock.Anything, "poles", "label", mock.AnythingOfType("ports.Row"), []string{"lat"}).
		Return(nil)

	res, err := Upsert(context.Background(), store, plan, []pole{{Label: "P1", Lat: 4}})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	store.AssertExpectations(t)
}
