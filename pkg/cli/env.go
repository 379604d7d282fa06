package cli

import (
	"context"
	"io"

	"github.com/m-mizutani/agriai/pkg/i18n"
	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/usecase/profile"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
)

// env is what every command needs before it talks to the AI service
type env struct {
	catalog *i18n.Catalog
	locale  *i18n.Locale
	lang    model.Language
	store   interfaces.KVStore
	profile *profile.Service
	out     io.Writer
	close   func()
}

// open loads translations, opens the store and resolves the language
func (cfg *config) open(ctx context.Context, out io.Writer) (*env, error) {
	catalog, err := cfg.newCatalog()
	if err != nil {
		return nil, err
	}

	store, closeFn, err := cfg.newKVStore(ctx)
	if err != nil {
		return nil, err
	}

	prof := profile.New(store)
	lang := cfg.language(ctx, prof)
	return &env{
		catalog: catalog,
		locale:  catalog.For(lang),
		lang:    lang,
		store:   store,
		profile: prof,
		out:     out,
		close:   closeFn,
	}, nil
}

// tier returns the tier of the logged-in user
func (e *env) tier(ctx context.Context) model.Tier {
	return e.profile.Tier(ctx)
}

// fail converts err into a translated error for the user. The full error is logged.
func (e *env) fail(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	logging.From(ctx).Debug("command failed", logging.ErrAttr(err))

	if model.IsUpgradeRequired(err) {
		return &userError{
			message: e.locale.Upgrade.Title + "\n" + e.locale.Upgrade.Body,
			cause:   err,
		}
	}
	return &userError{message: e.locale.ErrorMessage(err), cause: err}
}

// userError is an error whose message is already translated
type userError struct {
	message string
	cause   error
}

func (e *userError) Error() string { return e.message }
func (e *userError) Unwrap() error { return e.cause }
