package user

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/ensinoverso/backend/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		CheckEmailUniqueness(email string, excludedUsers ...User) error
		CountUsers() (int, error)
		CreateUser(user User) (User, error)
		QueryAllUsers() ([]User, error)
		GetUserByID(id string) (User, error)
		GetUserByEmail(email string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		// Unknown ordering fields are ignored.
		FilterUsers(filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		// UpdateUser updates non-zero fields of `user`. A nil `isActive` means "no change";
		// a nil `user.ClassIDs` means "no change".
		UpdateUser(user User, isActive *bool) (User, error)
		DeleteUsersByID(ids ...string) error
	}

	Service interface {
		CheckUniqueness(email string, excludedUsers ...User) error
		Register(ru RegisterUser) (User, error)
		Create(nu NewUser) (User, error)
		QueryAll() ([]User, error)
		Filter(filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		GetByID(id string) (User, error)
		GetByEmail(email string) (User, error)
		Update(id string, uu UpdateUser) (User, error)
		SetActive(id string, active bool) (User, error)
		SetLastLogin(usr User) (User, error)
		Delete(ids ...string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
	}
}

func (svc *service) CheckUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register applies the bootstrap rule: the first identity ever created becomes
// an active admin; everyone after that starts as a deactivated student awaiting
// admin approval.
//
// The count-then-create sequence is not atomic; see DESIGN.md.
func (svc *service) Register(ru RegisterUser) (User, error) {
	if err := svc.repo.CheckEmailUniqueness(ru.Email); err != nil {
		return User{}, err
	}

	count, err := svc.repo.CountUsers()
	if err != nil {
		return User{}, errors.Wrap(err, "counting users")
	}

	now := time.Now().UTC()
	usr := User{
		Name:      ru.Name,
		Email:     ru.Email,
		Role:      RoleStudent,
		IsActive:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if count == 0 {
		usr.Role = RoleAdmin
		usr.IsActive = true
	}
	if err := usr.SetPassword(ru.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	usr, err = svc.repo.CreateUser(usr)
	if err != nil {
		return User{}, err
	}
	if !usr.IsActive {
		svc.notifyAdminsOfPendingAccount(usr)
	}
	return usr, nil
}

func (svc *service) Create(nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true, // admin-created accounts skip approval
		ClassIDs:  nu.ClassIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(usr)
}

func (svc *service) QueryAll() ([]User, error) {
	return svc.repo.QueryAllUsers()
}

func (svc *service) Filter(filter QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	return svc.repo.FilterUsers(filter, ordering...)
}

func (svc *service) GetByID(id string) (User, error) {
	return svc.repo.GetUserByID(id)
}

func (svc *service) GetByEmail(email string) (User, error) {
	return svc.repo.GetUserByEmail(core.CleanString(email, true /* lower */))
}

func (svc *service) Update(id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Email:     uu.Email,
		Role:      uu.Role,
		ClassIDs:  uu.ClassIDs,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	return svc.repo.UpdateUser(usr, uu.IsActive)
}

// SetActive flips the account-activation gate. A newly activated user
// is notified by email.
func (svc *service) SetActive(id string, active bool) (User, error) {
	usr, err := svc.repo.GetUserByID(id)
	if err != nil {
		return User{}, err
	}
	wasActive := usr.IsActive

	usr, err = svc.repo.UpdateUser(User{ID: id, UpdatedAt: time.Now().UTC()}, &active)
	if err != nil {
		return User{}, err
	}
	if active && !wasActive {
		svc.sendAccountActivatedMail(usr)
	}
	return usr, nil
}

func (svc *service) SetLastLogin(usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(User{ID: usr.ID, LastLogin: usr.LastLogin}, nil)
}

func (svc *service) Delete(ids ...string) error {
	return svc.repo.DeleteUsersByID(ids...)
}

// notifyAdminsOfPendingAccount mails every admin that a new registration awaits approval.
func (svc *service) notifyAdminsOfPendingAccount(usr User) {
	admins, err := svc.repo.FilterUsers(QueryFilter{Role: RoleAdmin})
	if err != nil || len(admins) == 0 {
		return
	}
	to := make([]mail.Address, 0, len(admins))
	for _, adm := range admins {
		to = append(to, mail.Address{Name: adm.Name, Address: adm.Email})
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      to,
		Subject: "New account pending approval",
		BodyStr: fmt.Sprintf(
			"%s <%s> has registered and is waiting for activation.", usr.Name, usr.Email),
	})
}

func (svc *service) sendAccountActivatedMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Your account has been activated",
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nYour account has been activated. You can now sign in at %s.",
			usr.Name, core.Conf.FrontendBaseURL),
	})
}
