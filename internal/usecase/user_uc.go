package usecase

import (
	"context"
	"errors"
	"strings"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/domain/ports/repository"
	"homeaura-subscription/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes account operations and the contact collaborator.
type UserUseCase interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	// RevealContact returns the owner's unmasked contact. The viewer must pass the access gate.
	RevealContact(ctx context.Context, viewerID, ownerID string) (model.Contact, error)
	// PreviewContact returns the masked contact to any authenticated viewer.
	PreviewContact(ctx context.Context, ownerID string) (model.Contact, error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    model.Phone
	Role     model.Role
}

type userUC struct {
	users  repository.UserRepository
	access AccessUseCase
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, access AccessUseCase, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	return &userUC{
		users:  users,
		access: access,
		tm:     tm,
		log:    logger,
	}
}

func (u *userUC) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.Register")()

	usr, err := model.NewUser(in.Name, in.Email, in.Password, in.Phone, in.Role)
	if err != nil {
		return nil, err
	}

	// Find and insert in one serializable transaction so two sign-ups with the
	// same email cannot both pass the existence check.
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err = u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		existing, err := u.users.FindByEmail(ctx, tx, usr.Email)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyExists
		}
		return u.users.Save(ctx, tx, usr)
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", usr.ID).Str("role", string(usr.Role)).Msg("user registered")
	return usr, nil
}

func (u *userUC) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	usr, err := u.users.FindByEmail(ctx, repository.NoTX, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !usr.CheckPassword(password) {
		return nil, domain.ErrInvalidCredentials
	}
	return usr, nil
}

func (u *userUC) Get(ctx context.Context, id string) (*model.User, error) {
	return u.users.FindByID(ctx, repository.NoTX, id)
}

func (u *userUC) RevealContact(ctx context.Context, viewerID, ownerID string) (model.Contact, error) {
	if _, err := u.access.Require(ctx, viewerID); err != nil {
		return model.Contact{}, err
	}
	owner, err := u.users.FindByID(ctx, repository.NoTX, ownerID)
	if err != nil {
		return model.Contact{}, err
	}
	return model.ContactOf(owner), nil
}

func (u *userUC) PreviewContact(ctx context.Context, ownerID string) (model.Contact, error) {
	owner, err := u.users.FindByID(ctx, repository.NoTX, ownerID)
	if err != nil {
		return model.Contact{}, err
	}
	return model.ContactOf(owner).Mask(), nil
}
