package port

import (
	"context"

	"github.com/Saltoleto/consulta-produtos/internal/domain/model"
	"github.com/Saltoleto/consulta-produtos/internal/domain/valueobject"
)

// ViewReader loads the account-user view used to build outbound events.
type ViewReader interface {
	// FindAccountUserView returns found=false when the account has no linked user.
	FindAccountUserView(ctx context.Context, accountID string) (model.AccountUserView, bool, error)
}

// AccountRepository holds the batched writes performed for one lot. Every
// method is a no-op on empty input.
type AccountRepository interface {
	ViewReader

	// UpsertAccounts writes contas rows following the source type's AccountPolicy.
	UpsertAccounts(ctx context.Context, lot []model.AccountRecord, sourceType valueobject.SourceType) error
	// UpsertDetails overwrites both detail columns, writing NULL when absent.
	UpsertDetails(ctx context.Context, lot []model.AccountRecord) error
	// InsertUserLinks inserts (user, account) pairs, leaving existing pairs untouched.
	InsertUserLinks(ctx context.Context, lot []model.AccountRecord) error
	// UpsertConsents writes consents, skipping records without one.
	UpsertConsents(ctx context.Context, lot []model.AccountRecord) error
	// ExistingAccountIDs returns the subset of ids already present in contas.
	ExistingAccountIDs(ctx context.Context, ids []string) ([]string, error)
}

// AccountStore is the relational store behind the import.
type AccountStore interface {
	AccountRepository

	// InTx runs fn against a repository bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(repo AccountRepository) error) error
	// DeleteUserLinks removes every usuario_conta row of the given accounts
	// and returns the number of rows deleted.
	DeleteUserLinks(ctx context.Context, accountIDs []string) (int64, error)
	// Ping checks connectivity for readiness probes.
	Ping(ctx context.Context) error
}
