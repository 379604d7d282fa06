package profile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/crypto/bcrypt"
)

// Storage keys
const (
	userKeyPrefix = "users/"
	SessionKey    = "session"
	LastToolKey   = "last_active_tool"
	LanguageKey   = "preferred_language"
)

// Service manages the local user account, the mock subscription and preferences
type Service struct {
	store interfaces.KVStore
	now   func() time.Time
	cost  int
}

// Option is a functional option for Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithHashCost sets the bcrypt cost of password hashes
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

func New(store interfaces.KVStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		cost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func userKey(email string) string {
	return userKeyPrefix + model.NormalizeEmail(email)
}

// getUser returns nil without error if the user does not exist
func (x *Service) getUser(ctx context.Context, email string) (*model.User, error) {
	data, err := x.store.Get(ctx, userKey(email))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read user", goerr.V("email", email))
	}

	var user model.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, goerr.Wrap(err, "failed to decode user", goerr.V("email", email), goerr.T(model.TagDecode))
	}
	return &user, nil
}

func (x *Service) putUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return goerr.Wrap(err, "failed to encode user", goerr.V("email", user.Email))
	}
	if err := x.store.Set(ctx, userKey(user.Email), string(data)); err != nil {
		return goerr.Wrap(err, "failed to save user", goerr.V("email", user.Email))
	}
	return nil
}

// Register creates a free-tier user and logs in as that user
func (x *Service) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	user := &model.User{
		Name:      strings.TrimSpace(name),
		Email:     model.NormalizeEmail(email),
		Tier:      model.TierFree,
		CreatedAt: x.now(),
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, model.Validation(model.CodeInvalidInput, "password is required")
	}

	existing, err := x.getUser(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.Validation(model.CodeUserExists, "user already exists", goerr.V("email", user.Email))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), x.cost)
	if err != nil {
		return nil, model.Validation(model.CodeInvalidInput, "password cannot be used", goerr.V("reason", err.Error()))
	}
	user.PasswordHash = string(hash)

	if err := x.putUser(ctx, user); err != nil {
		return nil, err
	}
	if err := x.store.Set(ctx, SessionKey, user.Email); err != nil {
		return nil, goerr.Wrap(err, "failed to save session")
	}

	logging.From(ctx).Info("user registered", "email", user.Email)
	return user, nil
}

// Login verifies the password and starts a session
func (x *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := x.getUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, model.Validation(model.CodeInvalidCredentials, "invalid email or password")
	}

	if err := x.store.Set(ctx, SessionKey, user.Email); err != nil {
		return nil, goerr.Wrap(err, "failed to save session")
	}
	return user, nil
}

// Logout ends the session
func (x *Service) Logout(ctx context.Context) error {
	if err := x.store.Remove(ctx, SessionKey); err != nil {
		return goerr.Wrap(err, "failed to remove session")
	}
	return nil
}

// Current returns the logged-in user, or nil if nobody is logged in
func (x *Service) Current(ctx context.Context) (*model.User, error) {
	email, err := x.store.Get(ctx, SessionKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read session")
	}
	return x.getUser(ctx, email)
}

// Tier returns the tier of the logged-in user. Anonymous use and read
// failures are free tier.
func (x *Service) Tier(ctx context.Context) model.Tier {
	user, err := x.Current(ctx)
	if err != nil {
		logging.From(ctx).Warn("failed to read current user", logging.ErrAttr(err))
		return model.TierFree
	}
	if user == nil || user.Tier.Validate() != nil {
		return model.TierFree
	}
	return user.Tier
}

// Update changes the profile fields of the logged-in user. Empty values are kept.
func (x *Service) Update(ctx context.Context, name, phone, role string) (*model.User, error) {
	user, err := x.Current(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.Validation(model.CodeUserNotFound, "not logged in")
	}

	if name = strings.TrimSpace(name); name != "" {
		user.Name = name
	}
	if phone = strings.TrimSpace(phone); phone != "" {
		user.Phone = phone
	}
	if role = strings.TrimSpace(role); role != "" {
		user.Role = role
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	if err := x.putUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ConfirmPayment upgrades a user to pro after a mock payment confirmation
func (x *Service) ConfirmPayment(ctx context.Context, email, transactionID string) (*model.User, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, model.Validation(model.CodeInvalidTransaction, "transaction id is required")
	}

	user, err := x.getUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.Validation(model.CodeUserNotFound, "user not found", goerr.V("email", email))
	}

	user.Tier = model.TierPro
	user.UpgradedAt = x.now()
	if err := x.putUser(ctx, user); err != nil {
		return nil, err
	}

	logging.From(ctx).Info("user upgraded", "email", user.Email, "transaction_id", transactionID)
	return user, nil
}

// LastTool returns the last selected tool, or the default tool
func (x *Service) LastTool(ctx context.Context) model.Tool {
	v, err := x.store.Get(ctx, LastToolKey)
	if err != nil {
		if !errors.Is(err, interfaces.ErrKeyNotFound) {
			logging.From(ctx).Warn("failed to read last tool", logging.ErrAttr(err))
		}
		return model.DefaultTool
	}
	tool := model.Tool(v)
	if tool.Validate() != nil {
		return model.DefaultTool
	}
	return tool
}

// SetLastTool remembers the selected tool
func (x *Service) SetLastTool(ctx context.Context, tool model.Tool) error {
	if err := tool.Validate(); err != nil {
		return err
	}
	if err := x.store.Set(ctx, LastToolKey, string(tool)); err != nil {
		return goerr.Wrap(err, "failed to save last tool")
	}
	return nil
}

// Language returns the preferred language, or the default language
func (x *Service) Language(ctx context.Context) model.Language {
	v, err := x.store.Get(ctx, LanguageKey)
	if err != nil {
		if !errors.Is(err, interfaces.ErrKeyNotFound) {
			logging.From(ctx).Warn("failed to read language", logging.ErrAttr(err))
		}
		return model.DefaultLanguage
	}
	return model.ParseLanguage(v)
}

// SetLanguage remembers the preferred language
func (x *Service) SetLanguage(ctx context.Context, lang model.Language) error {
	if err := lang.Validate(); err != nil {
		return err
	}
	if err := x.store.Set(ctx, LanguageKey, string(lang)); err != nil {
		return goerr.Wrap(err, "failed to save language")
	}
	return nil
}
