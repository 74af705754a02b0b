package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Saltoleto/consulta-produtos/internal/domain/model"
	"github.com/Saltoleto/consulta-produtos/internal/domain/port"
	"github.com/Saltoleto/consulta-produtos/internal/domain/valueobject"
	pgpkg "github.com/Saltoleto/consulta-produtos/pkg/postgres"
)

const (
	insertIgnoreContaSQL = `
		INSERT INTO contas (cod_idt_conta, tipo, datahora_criacao, datahora_alteracao)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (cod_idt_conta) DO NOTHING
	`
	refreshContaSQL = `
		INSERT INTO contas (cod_idt_conta, tipo, datahora_criacao, datahora_alteracao)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (cod_idt_conta) DO UPDATE SET datahora_alteracao = now()
	`
	upsertDetalheSQL = `
		INSERT INTO conta_detalhes (conta_id, campo1, campo2)
		VALUES ($1, $2, $3)
		ON CONFLICT (conta_id) DO UPDATE SET
			campo1 = EXCLUDED.campo1,
			campo2 = EXCLUDED.campo2
	`
	insertUsuarioContaSQL = `
		INSERT INTO usuario_conta (usuario_id, conta_id)
		VALUES ($1, $2)
		ON CONFLICT (usuario_id, conta_id) DO NOTHING
	`
	upsertConsentimentoSQL = `
		INSERT INTO consentimentos (conta_id, consent, datahora_criacao)
		VALUES ($1, $2, now())
		ON CONFLICT (conta_id) DO UPDATE SET
			consent = EXCLUDED.consent,
			datahora_criacao = now()
	`
	deleteUsuarioContaSQL = `DELETE FROM usuario_conta WHERE conta_id = ANY($1)`
	findContaUsuarioSQL   = `
		SELECT c.cod_idt_conta, c.tipo, u.usuario_id
		FROM contas c
		JOIN usuario_conta u ON u.conta_id = c.cod_idt_conta
		WHERE c.cod_idt_conta = $1
		ORDER BY u.usuario_id
		LIMIT 1
	`
	existingContasSQL = `SELECT cod_idt_conta FROM contas WHERE cod_idt_conta = ANY($1)`
)

var _ port.AccountStore = (*ContaStore)(nil)

// ContaStore implements port.AccountStore on PostgreSQL. Calls made on the
// store itself run on the pool; InTx hands out a repository bound to one
// transaction.
type ContaStore struct {
	*contaRepo
	pool *pgxpool.Pool
}

// NewContaStore creates a ContaStore. A positive timeout bounds every statement.
func NewContaStore(pool *pgxpool.Pool, timeout time.Duration) *ContaStore {
	return &ContaStore{
		contaRepo: &contaRepo{q: pool, timeout: timeout},
		pool:      pool,
	}
}

// InTx runs fn inside a transaction, committing when it returns nil.
func (s *ContaStore) InTx(ctx context.Context, fn func(repo port.AccountRepository) error) error {
	var fnErr error
	err := pgpkg.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		fnErr = fn(&contaRepo{q: tx, timeout: s.timeout})
		return fnErr
	})
	if err == nil {
		return nil
	}
	if fnErr != nil && errors.Is(err, fnErr) {
		return err
	}
	return classify("transaction", err)
}

// DeleteUserLinks removes every link of the given accounts in one statement.
func (s *ContaStore) DeleteUserLinks(ctx context.Context, accountIDs []string) (int64, error) {
	if len(accountIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.q.Exec(ctx, deleteUsuarioContaSQL, accountIDs)
	if err != nil {
		return 0, classify("delete usuario_conta", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks that the pool can reach the database.
func (s *ContaStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := pgpkg.HealthCheck(ctx, s.pool); err != nil {
		return classify("ping", err)
	}
	return nil
}

// contaRepo runs the lot statements against a pool or a transaction.
type contaRepo struct {
	q       pgpkg.Querier
	timeout time.Duration
}

func (r *contaRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *contaRepo) execBatch(ctx context.Context, op string, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if _, err := pgpkg.ExecBatch(ctx, r.q, b); err != nil {
		return classify(op, err)
	}
	return nil
}

func (r *contaRepo) UpsertAccounts(ctx context.Context, lot []model.AccountRecord, sourceType valueobject.SourceType) error {
	b, err := contasBatch(lot, sourceType)
	if err != nil {
		return err
	}
	return r.execBatch(ctx, "upsert contas", b)
}

func (r *contaRepo) UpsertDetails(ctx context.Context, lot []model.AccountRecord) error {
	return r.execBatch(ctx, "upsert conta_detalhes", detalhesBatch(lot))
}

func (r *contaRepo) InsertUserLinks(ctx context.Context, lot []model.AccountRecord) error {
	return r.execBatch(ctx, "insert usuario_conta", usuarioContaBatch(lot))
}

func (r *contaRepo) UpsertConsents(ctx context.Context, lot []model.AccountRecord) error {
	return r.execBatch(ctx, "upsert consentimentos", consentimentosBatch(lot))
}

func (r *contaRepo) FindAccountUserView(ctx context.Context, accountID string) (model.AccountUserView, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var v model.AccountUserView
	err := r.q.QueryRow(ctx, findContaUsuarioSQL, accountID).Scan(&v.AccountID, &v.SourceType, &v.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AccountUserView{}, false, nil
	}
	if err != nil {
		return model.AccountUserView{}, false, classify("find conta usuario", err)
	}
	return v, true, nil
}

func (r *contaRepo) ExistingAccountIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.q.Query(ctx, existingContasSQL, ids)
	if err != nil {
		return nil, classify("select existing contas", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify("scan existing contas", err)
	}
	return found, nil
}

func contasBatch(lot []model.AccountRecord, sourceType valueobject.SourceType) (*pgx.Batch, error) {
	var sql string
	switch sourceType.AccountPolicy() {
	case valueobject.PolicyInsertIgnore:
		sql = insertIgnoreContaSQL
	case valueobject.PolicyRefreshTimestamp:
		sql = refreshContaSQL
	default:
		return nil, fmt.Errorf("%w: no account policy for source type %q", model.ErrValidation, sourceType)
	}

	b := &pgx.Batch{}
	for _, rec := range lot {
		b.Queue(sql, rec.ID, sourceType.String())
	}
	return b, nil
}

func detalhesBatch(lot []model.AccountRecord) *pgx.Batch {
	b := &pgx.Batch{}
	for _, rec := range lot {
		campo1, campo2 := rec.DetailFields()
		b.Queue(upsertDetalheSQL, rec.ID, campo1, campo2)
	}
	return b
}

func usuarioContaBatch(lot []model.AccountRecord) *pgx.Batch {
	b := &pgx.Batch{}
	for _, rec := range lot {
		b.Queue(insertUsuarioContaSQL, rec.UserID, rec.ID)
	}
	return b
}

func consentimentosBatch(lot []model.AccountRecord) *pgx.Batch {
	b := &pgx.Batch{}
	for _, rec := range lot {
		if rec.Consent == nil {
			continue
		}
		b.Queue(upsertConsentimentoSQL, rec.ID, rec.Consent.Payload)
	}
	return b
}

// queryCanceled is raised when statement_timeout fires.
const queryCanceled = "57014"

// classify marks err as a store failure, and as a timeout when the deadline
// expired or the server cancelled the statement.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) ||
		(errors.As(err, &pgErr) && pgErr.Code == queryCanceled) {
		return fmt.Errorf("%s: %w: %w: %w", op, model.ErrTimeout, model.ErrStore, err)
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrStore, err)
}
