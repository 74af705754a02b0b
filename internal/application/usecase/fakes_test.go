package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/Saltoleto/consulta-produtos/internal/application/usecase"
	"github.com/Saltoleto/consulta-produtos/internal/domain/event"
	"github.com/Saltoleto/consulta-produtos/internal/domain/model"
	"github.com/Saltoleto/consulta-produtos/internal/domain/port"
	"github.com/Saltoleto/consulta-produtos/internal/domain/valueobject"
	"github.com/Saltoleto/consulta-produtos/pkg/events"
	"github.com/Saltoleto/consulta-produtos/pkg/workerpool"
)

// --- In-memory store ---

type contaRow struct {
	tipo      string
	createdAt int64
	updatedAt int64
}

type detailRow struct {
	field1 *string
	field2 *string
}

type consentRow struct {
	payload   string
	createdAt int64
}

type linkRow struct {
	userID    int64
	accountID string
}

type storeState struct {
	contas   map[string]contaRow
	details  map[string]detailRow
	consents map[string]consentRow
	links    []linkRow
}

func (s storeState) clone() storeState {
	return storeState{
		contas:   maps.Clone(s.contas),
		details:  maps.Clone(s.details),
		consents: maps.Clone(s.consents),
		links:    slices.Clone(s.links),
	}
}

// fakeStore keeps committed state and hands each transaction a private copy
// that replaces it on commit.
type fakeStore struct {
	mu       sync.Mutex
	state    storeState
	clock    int64
	failOn   map[string]error
	findErrs map[string]error
	calls    []string
	txCount  int
	// onCommit and onDelete run after a successful commit or link delete.
	onCommit func()
	onDelete func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state: storeState{
			contas:   map[string]contaRow{},
			details:  map[string]detailRow{},
			consents: map[string]consentRow{},
		},
		failOn:   map[string]error{},
		findErrs: map[string]error{},
	}
}

func (s *fakeStore) repo() *fakeRepo {
	return &fakeRepo{store: s, state: &s.state}
}

func (s *fakeStore) InTx(ctx context.Context, fn func(repo port.AccountRepository) error) error {
	s.mu.Lock()
	s.txCount++
	tx := s.state.clone()
	s.mu.Unlock()

	if err := fn(&fakeRepo{store: s, state: &tx}); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = tx
	hook := s.onCommit
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (s *fakeStore) UpsertAccounts(ctx context.Context, lot []model.AccountRecord, st valueobject.SourceType) error {
	return s.repo().UpsertAccounts(ctx, lot, st)
}

func (s *fakeStore) UpsertDetails(ctx context.Context, lot []model.AccountRecord) error {
	return s.repo().UpsertDetails(ctx, lot)
}

func (s *fakeStore) InsertUserLinks(ctx context.Context, lot []model.AccountRecord) error {
	return s.repo().InsertUserLinks(ctx, lot)
}

func (s *fakeStore) UpsertConsents(ctx context.Context, lot []model.AccountRecord) error {
	return s.repo().UpsertConsents(ctx, lot)
}

func (s *fakeStore) ExistingAccountIDs(ctx context.Context, ids []string) ([]string, error) {
	return s.repo().ExistingAccountIDs(ctx, ids)
}

func (s *fakeStore) FindAccountUserView(ctx context.Context, id string) (model.AccountUserView, bool, error) {
	return s.repo().FindAccountUserView(ctx, id)
}

func (s *fakeStore) DeleteUserLinks(ctx context.Context, ids []string) (int64, error) {
	n, err := s.deleteUserLinks(ids)
	if err == nil && s.onDelete != nil {
		s.onDelete()
	}
	return n, err
}

func (s *fakeStore) deleteUserLinks(ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteUserLinks"); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	kept := s.state.links[:0:0]
	var deleted int64
	for _, l := range s.state.links {
		if slices.Contains(ids, l.accountID) {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	s.state.links = kept
	return deleted, nil
}

func (s *fakeStore) Ping(context.Context) error { return nil }

// enter records a call and returns the injected failure, if any. Callers hold mu.
func (s *fakeStore) enter(method string) error {
	s.calls = append(s.calls, method)
	return s.failOn[method]
}

func (s *fakeStore) tick() int64 {
	s.clock++
	return s.clock
}

func (s *fakeStore) failWith(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[method] = err
}

func (s *fakeStore) snapshot() storeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *fakeStore) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

func (s *fakeStore) transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

type fakeRepo struct {
	store *fakeStore
	state *storeState
}

func (r *fakeRepo) UpsertAccounts(_ context.Context, lot []model.AccountRecord, st valueobject.SourceType) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter("UpsertAccounts"); err != nil {
		return err
	}
	for _, rec := range lot {
		now := r.store.tick()
		row, exists := r.state.contas[rec.ID]
		switch {
		case !exists:
			r.state.contas[rec.ID] = contaRow{tipo: st.String(), createdAt: now, updatedAt: now}
		case st.AccountPolicy() == valueobject.PolicyRefreshTimestamp:
			row.updatedAt = now
			r.state.contas[rec.ID] = row
		}
	}
	return nil
}

func (r *fakeRepo) UpsertDetails(_ context.Context, lot []model.AccountRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter("UpsertDetails"); err != nil {
		return err
	}
	for _, rec := range lot {
		f1, f2 := rec.DetailFields()
		r.state.details[rec.ID] = detailRow{field1: f1, field2: f2}
	}
	return nil
}

func (r *fakeRepo) InsertUserLinks(_ context.Context, lot []model.AccountRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter("InsertUserLinks"); err != nil {
		return err
	}
	for _, rec := range lot {
		link := linkRow{userID: rec.UserID, accountID: rec.ID}
		if !slices.Contains(r.state.links, link) {
			r.state.links = append(r.state.links, link)
		}
	}
	return nil
}

func (r *fakeRepo) UpsertConsents(_ context.Context, lot []model.AccountRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter("UpsertConsents"); err != nil {
		return err
	}
	for _, rec := range lot {
		if rec.Consent == nil {
			continue
		}
		r.state.consents[rec.ID] = consentRow{payload: rec.Consent.Payload, createdAt: r.store.tick()}
	}
	return nil
}

func (r *fakeRepo) ExistingAccountIDs(_ context.Context, ids []string) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter("ExistingAccountIDs"); err != nil {
		return nil, err
	}
	var found []string
	for _, id := range ids {
		if _, ok := r.state.contas[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (r *fakeRepo) FindAccountUserView(_ context.Context, id string) (model.AccountUserView, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter("FindAccountUserView"); err != nil {
		return model.AccountUserView{}, false, err
	}
	if err := r.store.findErrs[id]; err != nil {
		return model.AccountUserView{}, false, err
	}
	row, ok := r.state.contas[id]
	if !ok {
		return model.AccountUserView{}, false, nil
	}
	var (
		userID int64
		found  bool
	)
	for _, l := range r.state.links {
		if l.accountID == id && (!found || l.userID < userID) {
			userID, found = l.userID, true
		}
	}
	if !found {
		return model.AccountUserView{}, false, nil
	}
	return model.AccountUserView{AccountID: id, SourceType: row.tipo, UserID: userID}, true, nil
}

// --- Recording publisher ---

type published struct {
	topic string
	key   string
	msg   event.ContaMessage
}

type fakePublisher struct {
	mu        sync.Mutex
	messages  []published
	failFor   map[string]error
	onPublish func(ctx context.Context)
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failFor: map[string]error{}}
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, evts ...events.DomainEvent) error {
	if p.onPublish != nil {
		p.onPublish(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, evt := range evts {
		if err := p.failFor[evt.AggregateID()]; err != nil {
			return err
		}
		msg, _ := evt.(event.ContaMessage)
		p.messages = append(p.messages, published{topic: topic, key: evt.AggregateID(), msg: msg})
	}
	return nil
}

func (p *fakePublisher) failFrom(accountID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failFor[accountID] = err
}

func (p *fakePublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.messages)
}

func (p *fakePublisher) keys(topic string) []string {
	var keys []string
	for _, m := range p.sent() {
		if m.topic == topic {
			keys = append(keys, m.key)
		}
	}
	return keys
}

// --- Wiring helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testMetrics(t *testing.T) *usecase.Metrics {
	t.Helper()
	m, err := usecase.NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return m
}

type options struct {
	async        bool
	lotSize      int
	diffExisting bool
	captureViews bool
	workers      int
	queueSize    int
	policy       workerpool.OverflowPolicy
}

type harness struct {
	store       *fakeStore
	publisher   *fakePublisher
	dispatcher  port.Dispatcher
	emitter     *usecase.Emitter
	lots        *usecase.LotProcessor
	revocations *usecase.RevocationProcessor
	uc          *usecase.ImportAccountsUseCase
}

func newHarness(t *testing.T, opts options) *harness {
	t.Helper()
	h := &harness{store: newFakeStore(), publisher: newFakePublisher()}
	metrics := testMetrics(t)
	logger := testLogger()

	if opts.async {
		workers, queue := opts.workers, opts.queueSize
		if workers == 0 {
			workers = 4
		}
		if queue == 0 {
			queue = 1024
		}
		pool, err := workerpool.New(workerpool.Config{
			Name:      "test",
			Workers:   workers,
			QueueSize: queue,
			Policy:    opts.policy,
		}, logger)
		require.NoError(t, err)
		h.dispatcher = usecase.NewPooledDispatcher(pool, metrics, logger)
		t.Cleanup(func() { _ = h.dispatcher.Shutdown(context.Background()) })
	} else {
		h.dispatcher = usecase.NewInlineDispatcher()
	}

	h.emitter = usecase.NewEmitter(h.publisher, 0, metrics, logger)
	h.lots = usecase.NewLotProcessor(h.store, h.dispatcher, h.emitter, opts.diffExisting, metrics, logger)
	h.revocations = usecase.NewRevocationProcessor(h.store, h.dispatcher, h.emitter, opts.captureViews, metrics, logger)
	h.uc = usecase.NewImportAccountsUseCase(h.lots, h.revocations, opts.lotSize, metrics, logger)
	return h
}

// drain waits for pooled emissions to finish.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, h.dispatcher.Shutdown(context.Background()))
}

func strPtr(s string) *string { return &s }
