package identity

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the identity record store consumed by the resolver, the username
// allocator, the token service, and the gateway. Uniqueness of email,
// username, and provider IDs is enforced by the store's unique indexes; the
// finders here are single-record operations.
type Users interface {
	repository.Repository[*User]

	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByProvider(ctx context.Context, provider AuthMethod, providerID string) (*User, error)

	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	Update(ctx context.Context, record *User, criteria ...repository.UpdateCriteria) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository builds the Bun-backed Users store.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.findOne(ctx, "id", id.String())
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.findOne(ctx, "email", normalizeEmail(email))
}

func (a *users) FindByUsername(ctx context.Context, username string) (*User, error) {
	return a.findOne(ctx, "username", username)
}

func (a *users) FindByProvider(ctx context.Context, provider AuthMethod, providerID string) (*User, error) {
	column, ok := providerColumn(provider)
	if !ok {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"provider": provider,
			})
	}
	return a.findOne(ctx, column, providerID)
}

func (a *users) findOne(ctx context.Context, column, value string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, storeFailure(err, "user lookup failed")
	}

	return record, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)

	created, err := a.Repository.CreateTx(ctx, a.db, record, criteria...)
	if err != nil {
		if conflict := conflictFromDriver(err); conflict != nil {
			return nil, conflict
		}
		return nil, storeFailure(err, "user create failed")
	}

	return created, nil
}

func (a *users) Update(ctx context.Context, record *User, criteria ...repository.UpdateCriteria) (*User, error) {
	if len(criteria) == 0 {
		criteria = []repository.UpdateCriteria{
			repository.UpdateByID(record.ID.String()),
		}
	}

	now := time.Now()
	record.UpdatedAt = &now

	updated, err := a.Repository.UpdateTx(ctx, a.db, record, criteria...)
	if err != nil {
		if conflict := conflictFromDriver(err); conflict != nil {
			return nil, conflict
		}
		return nil, storeFailure(err, "user update failed")
	}

	return updated, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = normalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func providerColumn(provider AuthMethod) (string, bool) {
	switch provider {
	case AuthMethodGoogle:
		return "google_id", true
	case AuthMethodGitHub:
		return "github_id", true
	default:
		return "", false
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
