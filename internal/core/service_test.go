package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetsync/internal/connector"
	"github.com/JonMunkholm/sheetsync/internal/core"
	"github.com/JonMunkholm/sheetsync/internal/store/memory"
)

var testColumns = map[string][]string{
	core.FieldExternalID:   {"id"},
	core.FieldDate:         {"date"},
	core.FieldTime:         {"time"},
	core.FieldVesselName:   {"vessel"},
	core.FieldAddress:      {"address"},
	core.FieldLocation:     {"location"},
	core.FieldDescription:  {"description"},
	core.FieldContactName:  {"contact"},
	core.FieldContactPhone: {"phone"},
	core.FieldStatus:       {"status"},
}

// registerTestSheets replaces the registry with a primary "services" sheet
// and a secondary "archive" sheet.
func registerTestSheets(t *testing.T) {
	t.Helper()
	core.Clear()
	core.Register(core.SheetDefinition{Key: "services", Title: "SERVİSLER", Primary: true, Columns: testColumns})
	core.Register(core.SheetDefinition{Key: "archive", Title: "ARŞİV", Columns: testColumns})
	t.Cleanup(core.Clear)
}

type fixture struct {
	store *memory.Store
	src   *connector.Static
	svc   *core.Service
	cache *core.LastRunCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registerTestSheets(t)

	f := &fixture{
		store: memory.New(),
		src:   connector.NewStatic(),
		cache: &core.LastRunCache{},
	}
	f.svc = core.NewService(f.store, f.src.Factory(), f.cache, core.Options{RowWorkers: 3})
	return f
}

func (f *fixture) sync(t *testing.T, sheet string, mode core.Mode) core.SyncResult {
	t.Helper()
	res, err := f.svc.SyncSheet(context.Background(), sheet, core.SyncOptions{Mode: mode})
	require.NoError(t, err)
	return res
}

func TestSyncSheetScenario(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services",
		core.RawRow{"id": "2720", "date": "03.02.2026", "status": "PLANLANDI-RANDEVU"},
		core.RawRow{"id": nil, "date": "garbage"},
	)

	res := f.sync(t, "services", core.ModeIncremental)

	require.Equal(t, 1, res.Created)
	require.Equal(t, 0, res.Updated)
	require.Len(t, res.Errors, 1)
	require.Equal(t, 3, res.Errors[0].Row)
	require.Equal(t, "services", res.Errors[0].Sheet)
	require.Equal(t, core.ErrorKindValidation, res.Errors[0].Kind)
	require.Equal(t, core.RunPartial, res.Status)
	require.False(t, res.Success)
	require.Equal(t, 1, res.Skipped)
	require.NotEmpty(t, res.RunID)

	stored, err := f.store.ServiceByExternalID(context.Background(), "2720")
	require.NoError(t, err)
	require.Equal(t, core.StatusScheduled, stored.Record.Status)
	require.Equal(t, "2026-02-03", stored.Record.Date.String())
	require.Equal(t, "services", stored.SheetKey)
}

func TestSyncSheetIdempotent(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services",
		core.RawRow{"id": "1", "date": "03.02.2026", "vessel": "MAVİ", "status": "TAMAMLANDI"},
		core.RawRow{"id": "2", "date": "2026-02-04", "vessel": "DENİZ"},
	)

	first := f.sync(t, "services", core.ModeIncremental)
	require.Equal(t, 2, first.Created)
	require.Equal(t, core.RunSuccess, first.Status)
	require.True(t, first.Success)
	writes := f.store.Writes()

	second := f.sync(t, "services", core.ModeIncremental)
	require.Zero(t, second.Created)
	require.Zero(t, second.Updated)
	require.Equal(t, 2, second.Unchanged)
	require.Equal(t, core.RunSuccess, second.Status)
	require.Equal(t, writes, f.store.Writes(), "unchanged rows must not be written")
}

func TestSyncSheetUpdatesChangedRows(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services", core.RawRow{"id": "1", "status": "PLANLANDI"})
	f.sync(t, "services", core.ModeIncremental)

	f.src.Set("services", core.RawRow{"id": "1", "status": "TAMAMLANDI"})
	res := f.sync(t, "services", core.ModeIncremental)
	require.Equal(t, 1, res.Updated)

	stored, err := f.store.ServiceByExternalID(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, stored.Record.Status)
}

func TestIncrementalNeverDeletes(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services", core.RawRow{"id": "1"}, core.RawRow{"id": "2"})
	f.sync(t, "services", core.ModeIncremental)

	f.src.Set("services", core.RawRow{"id": "1"})
	res := f.sync(t, "services", core.ModeIncremental)
	require.Zero(t, res.Deleted)
	require.Equal(t, 2, f.store.ActiveCount())
}

func TestFullResetRebuildsSheet(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services", core.RawRow{"id": "1"}, core.RawRow{"id": "2"})
	f.src.Set("archive", core.RawRow{"id": "9"})
	f.sync(t, "services", core.ModeIncremental)
	f.sync(t, "archive", core.ModeIncremental)

	f.src.Set("services", core.RawRow{"id": "2", "status": "DEVAM"}, core.RawRow{"id": "3"})
	res := f.sync(t, "services", core.ModeFullReset)

	require.Equal(t, core.RunSuccess, res.Status)
	require.Equal(t, 2, res.Deleted)
	require.Equal(t, 2, res.Created, "revived and new rows both count as created")
	require.Zero(t, res.Updated)

	one, err := f.store.ServiceByExternalID(context.Background(), "1")
	require.NoError(t, err)
	require.False(t, one.Active())

	nine, err := f.store.ServiceByExternalID(context.Background(), "9")
	require.NoError(t, err)
	require.True(t, nine.Active(), "full reset is scoped to its own sheet")

	report, err := f.svc.ValidateAgainstStore(context.Background(), core.ValidateOptions{IncludeAll: true})
	require.NoError(t, err)
	require.True(t, report.OK)
	require.Equal(t, 2, report.Checked)
}

func TestFullResetKeepsStoreWhenFetchFails(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services", core.RawRow{"id": "1"})
	f.sync(t, "services", core.ModeIncremental)

	f.src.Fail("services", errors.New("403 forbidden"))
	res := f.sync(t, "services", core.ModeFullReset)

	require.Equal(t, core.RunFailed, res.Status)
	require.Zero(t, res.Deleted)
	require.Equal(t, 1, f.store.ActiveCount())
}

func TestFullResetDeleteFailure(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services", core.RawRow{"id": "1"})
	f.store.FailSoftDelete = errors.New("disk full")

	res := f.sync(t, "services", core.ModeFullReset)
	require.Equal(t, core.RunFailed, res.Status)
	require.Zero(t, res.Created)
	require.Equal(t, core.ErrorKindPersistence, res.Errors[0].Kind)
}

func TestFetchFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.src.Fail("services", errors.New("connection reset by peer"))

	res := f.sync(t, "services", core.ModeIncremental)
	require.Equal(t, core.RunFailed, res.Status)
	require.False(t, res.Success)
	require.Zero(t, res.Created+res.Updated+res.Deleted+res.Skipped)
	require.Len(t, res.Errors, 1)
	require.Equal(t, core.ErrorKindFetch, res.Errors[0].Kind)
	require.Zero(t, res.Errors[0].Row)

	logs, err := f.store.RecentRunLogs(context.Background(), "services", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, core.RunFailed, logs[0].Status)
	require.Equal(t, "INCREMENTAL", logs[0].SyncType)
	require.Len(t, logs[0].Errors, 1)
}

func TestConnectorFactoryFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	broken := func(context.Context) (core.Connector, error) {
		return nil, errors.New("parse google credentials: bad key")
	}
	svc := core.NewService(f.store, broken, f.cache, core.Options{})
	require.True(t, svc.Available(context.Background()))

	res, err := svc.SyncSheet(context.Background(), "services", core.SyncOptions{})
	require.NoError(t, err)
	require.Equal(t, core.RunFailed, res.Status)
	require.Len(t, res.Errors, 1)
	require.Equal(t, core.ErrorKindFetch, res.Errors[0].Kind)
	require.Contains(t, res.Errors[0].Message, "bad key")

	results, err := svc.SyncAll(context.Background(), core.SyncOptions{})
	require.NoError(t, err)
	require.Equal(t, core.RunFailed, results["archive"].Status)

	logs, err := f.store.RecentRunLogs(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	require.NotNil(t, f.cache.Load())
	require.Equal(t, core.RunFailed, f.cache.Load().Status)
}

func TestAvailableConsultsFactoryOnce(t *testing.T) {
	f := newFixture(t)
	var calls int
	factory := func(ctx context.Context) (core.Connector, error) {
		calls++
		return f.src, nil
	}
	svc := core.NewService(f.store, factory, nil, core.Options{})

	for i := 0; i < 3; i++ {
		require.True(t, svc.Status(context.Background(), 0).SyncAvailable)
	}
	require.True(t, svc.Available(context.Background()))
	require.Equal(t, 1, calls)
}

func TestAllRowsFailing(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services", core.RawRow{"id": "", "date": "x"}, core.RawRow{"id": "2", "date": "31.04.2024"})

	res := f.sync(t, "services", core.ModeIncremental)
	require.Equal(t, core.RunFailed, res.Status)
	require.Len(t, res.Errors, 2)
	require.Equal(t, 2, res.Skipped)
}

func TestEmptyFetchSucceeds(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services", core.RawRow{"id": "", "status": " "})

	res := f.sync(t, "services", core.ModeIncremental)
	require.Equal(t, core.RunSuccess, res.Status)
	require.Empty(t, res.Errors)
	require.Zero(t, res.Skipped)
}

func TestManualRecordIsNotOverwritten(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(core.StoredService{
		Origin: core.OriginManual,
		Record: core.ServiceRecord{ExternalID: "7", VesselName: "MANUEL", Status: core.StatusScheduled},
	})
	f.src.Set("services", core.RawRow{"id": "7", "vessel": "SHEET"}, core.RawRow{"id": "8"})

	res := f.sync(t, "services", core.ModeIncremental)
	require.Equal(t, core.RunPartial, res.Status)
	require.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "7", res.Errors[0].ExternalID)
	require.Equal(t, core.ErrorKindPersistence, res.Errors[0].Kind)

	stored, err := f.store.ServiceByExternalID(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, "MANUEL", stored.Record.VesselName)
}

func TestDuplicateExternalIDFirstWins(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services",
		core.RawRow{"id": "1", "vessel": "FIRST"},
		core.RawRow{"id": "1", "vessel": "SECOND"},
	)

	res := f.sync(t, "services", core.ModeIncremental)
	require.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 1)
	require.Equal(t, 3, res.Errors[0].Row)

	stored, err := f.store.ServiceByExternalID(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, "FIRST", stored.Record.VesselName)
}

func TestRecordMovesBetweenSheets(t *testing.T) {
	f := newFixture(t)
	f.src.Set("archive", core.RawRow{"id": "1", "status": "DEVAM"})
	f.sync(t, "archive", core.ModeIncremental)

	f.src.Set("services", core.RawRow{"id": "1", "status": "DEVAM"})
	res := f.sync(t, "services", core.ModeIncremental)
	require.Equal(t, 1, res.Updated)

	stored, err := f.store.ServiceByExternalID(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, "services", stored.SheetKey)
}

func TestPrimarySheetKeepsOwnership(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services", core.RawRow{"id": "7", "vessel": "Mavi Deniz"})
	f.src.Set("archive", core.RawRow{"id": "7", "vessel": "Poyraz"})

	_, err := f.svc.SyncAll(context.Background(), core.SyncOptions{})
	require.NoError(t, err)

	for pass := 0; pass < 2; pass++ {
		results, err := f.svc.SyncAll(context.Background(), core.SyncOptions{})
		require.NoError(t, err)
		require.Zero(t, results["services"].Updated)
		require.Equal(t, 1, results["services"].Unchanged)
		require.Zero(t, results["archive"].Updated)
		require.Equal(t, 1, results["archive"].Unchanged)
		require.Equal(t, core.RunSuccess, results["archive"].Status)
	}

	stored, err := f.store.ServiceByExternalID(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, "services", stored.SheetKey)
	require.Equal(t, "Mavi Deniz", stored.Record.VesselName)

	report, err := f.svc.ValidateAgainstStore(context.Background(), core.ValidateOptions{IncludeAll: true})
	require.NoError(t, err)
	require.True(t, report.OK)
}

func TestRunLogFailureDoesNotAlterResult(t *testing.T) {
	f := newFixture(t)
	f.store.FailInsertRunLog = errors.New("sync_logs unavailable")
	f.src.Set("services", core.RawRow{"id": "1"})

	res := f.sync(t, "services", core.ModeIncremental)
	require.Equal(t, core.RunSuccess, res.Status)
	require.Equal(t, 1, res.Created)
	require.NotNil(t, f.svc.LastRun(), "cache is updated even when the log write fails")
}

func TestSyncSheetErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SyncSheet(context.Background(), "nope", core.SyncOptions{})
	require.ErrorIs(t, err, core.ErrUnknownSheet)

	unavailable := core.NewService(f.store, func(context.Context) (core.Connector, error) { return nil, nil }, nil, core.Options{})
	_, err = unavailable.SyncSheet(context.Background(), "services", core.SyncOptions{})
	require.ErrorIs(t, err, core.ErrSyncUnavailable)
	require.False(t, unavailable.Available(context.Background()))

	none := core.NewService(f.store, nil, nil, core.Options{})
	_, err = none.SyncAll(context.Background(), core.SyncOptions{})
	require.ErrorIs(t, err, core.ErrSyncUnavailable)
}

func TestSyncAllSharesRunID(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services", core.RawRow{"id": "1"}, core.RawRow{"id": ""})
	f.src.Fail("archive", errors.New("tab missing"))

	results, err := f.svc.SyncAll(context.Background(), core.SyncOptions{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "run-1", results["services"].RunID)
	require.Equal(t, "run-1", results["archive"].RunID)
	require.Equal(t, core.RunPartial, results["services"].Status)
	require.Equal(t, core.RunFailed, results["archive"].Status)
	require.False(t, core.AllSucceeded(results))

	flat := core.FlattenErrors(results)
	require.Len(t, flat, 2)
	require.Equal(t, "archive", flat[0].Sheet)
	require.Equal(t, "services", flat[1].Sheet)
}

// blockingConnector holds every fetch until release is closed.
type blockingConnector struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingConnector() *blockingConnector {
	return &blockingConnector{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingConnector) FetchRows(ctx context.Context, _ core.SheetDefinition) ([]core.SheetRow, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []core.SheetRow{{Number: 2, Values: core.RawRow{"id": "1"}}}, nil
}

func TestSameSheetRunsAreSerialized(t *testing.T) {
	registerTestSheets(t)
	conn := newBlockingConnector()
	svc := core.NewService(memory.New(), func(context.Context) (core.Connector, error) { return conn, nil }, nil,
		core.Options{MaxConcurrentRuns: 4})

	done := make(chan core.SyncResult, 1)
	go func() {
		res, _ := svc.SyncSheet(context.Background(), "services", core.SyncOptions{})
		done <- res
	}()
	<-conn.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := svc.SyncSheet(ctx, "services", core.SyncOptions{})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(conn.release)
	res := <-done
	require.Equal(t, core.RunSuccess, res.Status)
}

func TestRunSurvivesCallerCancellation(t *testing.T) {
	registerTestSheets(t)
	conn := newBlockingConnector()
	store := memory.New()
	svc := core.NewService(store, func(context.Context) (core.Connector, error) { return conn, nil }, nil, core.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan core.SyncResult, 1)
	go func() {
		res, _ := svc.SyncSheet(ctx, "services", core.SyncOptions{})
		done <- res
	}()

	<-conn.started
	cancel()
	close(conn.release)

	res := <-done
	require.Equal(t, core.RunSuccess, res.Status)
	require.Equal(t, 1, store.ActiveCount())
}

func TestStatusReport(t *testing.T) {
	f := newFixture(t)

	report := f.svc.Status(context.Background(), 5)
	require.True(t, report.Stale)
	require.Nil(t, report.LastRun)
	require.Nil(t, report.LastRunAt)
	require.Equal(t, 15, report.ThresholdMinutes)
	require.True(t, report.SyncAvailable)

	f.src.Set("services", core.RawRow{"id": "1"})
	f.sync(t, "services", core.ModeIncremental)

	report = f.svc.Status(context.Background(), 5)
	require.False(t, report.Stale)
	require.NotNil(t, report.LastRun)
	require.Len(t, report.RecentRuns, 1)

	fresh := core.NewService(f.store, f.src.Factory(), nil, core.Options{})
	report = fresh.Status(context.Background(), 5)
	require.Nil(t, report.LastRun)
	require.NotNil(t, report.LastRunAt, "persisted run log supplies lastRunAt")
	require.False(t, report.Stale)
}

func TestValidateDetectsDrift(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services",
		core.RawRow{"id": "1", "vessel": "A"},
		core.RawRow{"id": "2", "vessel": "B"},
		core.RawRow{"id": "3", "vessel": "C"},
	)
	f.sync(t, "services", core.ModeIncremental)

	f.src.Set("services",
		core.RawRow{"id": "1", "vessel": "A"},
		core.RawRow{"id": "2", "vessel": "CHANGED"},
		core.RawRow{"id": "4", "vessel": "NEW"},
	)

	report, err := f.svc.ValidateAgainstStore(context.Background(), core.ValidateOptions{SampleLimit: 2})
	require.NoError(t, err)
	require.False(t, report.OK)
	require.Equal(t, 2, report.Checked)
	require.Equal(t, 1, report.Mismatched)
	require.Equal(t, core.FieldVesselName, report.Samples[1].Mismatches[0].Field)

	report, err = f.svc.ValidateAgainstStore(context.Background(), core.ValidateOptions{IncludeAll: true})
	require.NoError(t, err)
	require.Equal(t, 3, report.Checked)
	require.False(t, report.Samples[2].Found)
}

func TestValidateWithoutSheets(t *testing.T) {
	f := newFixture(t)
	core.Clear()

	_, err := f.svc.ValidateAgainstStore(context.Background(), core.ValidateOptions{})
	require.ErrorIs(t, err, core.ErrNoPrimarySheet)
}

func TestSchedulerRunsImmediately(t *testing.T) {
	f := newFixture(t)
	f.src.Set("services", core.RawRow{"id": "1"})
	f.src.Set("archive", core.RawRow{"id": "2"})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		f.svc.StartScheduler(ctx, time.Hour, core.ModeIncremental)
		close(stopped)
	}()

	var logs []core.RunLog
	require.Eventually(t, func() bool {
		logs, _ = f.store.RecentRunLogs(context.Background(), "", 0)
		return len(logs) == 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-stopped

	require.Equal(t, 2, f.store.ActiveCount())
	require.Equal(t, core.TriggerScheduler, logs[0].Trigger)
	require.Equal(t, logs[0].RunID, logs[1].RunID)
}

func TestSchedulerDisabled(t *testing.T) {
	f := newFixture(t)
	f.svc.StartScheduler(context.Background(), 0, "")
	require.Zero(t, f.src.Calls("services"))
}
