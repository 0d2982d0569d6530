// Package client собирает клиент умного гроссбуха: владелец,
// хранилище записей, контроллеры сущностей и уведомления.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	gosync "sync"
	"syscall"

	"golang.org/x/exp/slog"

	"smartledger/internal/app/client/config"
	"smartledger/internal/domain/identity"
	"smartledger/internal/domain/identity/anon"
	"smartledger/internal/domain/identity/session"
	"smartledger/internal/domain/ledger"
	"smartledger/internal/domain/sync"
	"smartledger/internal/infrastructure/storage"
	"smartledger/internal/infrastructure/storage/postgres"
	"smartledger/internal/infrastructure/storage/rest"
)

type App struct {
	config      *config.Config
	log         *slog.Logger
	local       *LocalStore
	identity    identity.Provider
	store       storage.Store
	feed        storage.Feed
	presenter   *Presenter
	controllers map[ledger.Entity]*sync.Controller

	closeRemote func() error
	cancel      context.CancelFunc
	wg          gosync.WaitGroup

	mu    gosync.RWMutex
	ident *identity.Identity
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	// Инициализируем локальное хранилище
	local, err := NewLocalStore(cfg.LocalStorePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации локального хранилища: %w", err)
	}

	app := &App{
		config:      cfg,
		log:         log,
		local:       local,
		presenter:   NewPresenter(nil),
		controllers: make(map[ledger.Entity]*sync.Controller, len(ledger.Entities())),
	}

	// Инициализируем удалённое хранилище записей
	var remote storage.Store
	switch cfg.Backend {
	case config.BackendPostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURI, log)
		if err != nil {
			local.Close()
			return nil, fmt.Errorf("ошибка подключения к postgres: %w", err)
		}
		remote = pg
		app.feed = newCachingFeed(pg, local, log)
		app.closeRemote = pg.Close
	case config.BackendRest:
		remote = rest.New(cfg.ServerAddress, cfg.EnableTLS, log)
	default:
		local.Close()
		return nil, fmt.Errorf("неизвестный бэкенд: %s", cfg.Backend)
	}

	app.store = newCachingStore(remote, local, log)

	// Инициализируем провайдера идентификации
	switch cfg.IdentityMode {
	case config.IdentitySession:
		scheme := "http://"
		if cfg.EnableTLS {
			scheme = "https://"
		}
		app.identity = session.New(scheme+cfg.AuthAddress, cfg.TokenPath, log)
	case config.IdentityAnonymous:
		app.identity = anon.New(local)
	}

	for _, entity := range ledger.Entities() {
		app.controllers[entity] = sync.NewController(ledger.SchemaOf(entity), app.store, app.presenter, log)
	}

	return app, nil
}

// Load восстанавливает владельца и загружает все сущности дашборда
func (a *App) Load(ctx context.Context) error {
	ident, err := a.identity.Current(ctx)
	if err != nil {
		return fmt.Errorf("ошибка определения владельца: %w", err)
	}
	a.applyIdentity(ctx, ident)
	return nil
}

// applyIdentity перенацеливает все контроллеры на нового владельца.
// Сущности загружаются параллельно, владельца меняем разом.
func (a *App) applyIdentity(ctx context.Context, ident *identity.Identity) {
	a.mu.Lock()
	a.ident = ident
	a.mu.Unlock()

	owner := ""
	if ident != nil {
		owner = ident.ID
	}

	var wg gosync.WaitGroup
	for _, ctrl := range a.controllers {
		wg.Add(1)
		go func(ctrl *sync.Controller) {
			defer wg.Done()
			ctrl.SetOwner(ctx, owner)
		}(ctrl)
	}
	wg.Wait()
}

// Identity возвращает текущего владельца, nil если никто не вошёл
func (a *App) Identity() *identity.Identity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.ident == nil {
		return nil
	}
	ident := *a.ident
	return &ident
}

// Controller возвращает контроллер сущности
func (a *App) Controller(entity ledger.Entity) *sync.Controller {
	return a.controllers[entity]
}

// Controllers возвращает контроллеры в порядке дашборда
func (a *App) Controllers() []*sync.Controller {
	out := make([]*sync.Controller, 0, len(a.controllers))
	for _, entity := range ledger.Entities() {
		out = append(out, a.controllers[entity])
	}
	return out
}

// SetField обновляет поле черновика сущности
func (a *App) SetField(entity ledger.Entity, field, raw string) error {
	ctrl, ok := a.controllers[entity]
	if !ok {
		return ledger.ErrUnknownEntity
	}
	return ctrl.SetField(field, raw)
}

// Save сохраняет черновик сущности
func (a *App) Save(ctx context.Context, entity ledger.Entity) error {
	ctrl, ok := a.controllers[entity]
	if !ok {
		return ledger.ErrUnknownEntity
	}
	return ctrl.Save(ctx)
}

// SignIn выполняет вход через внешнего провайдера
func (a *App) SignIn(ctx context.Context, provider, secret string) error {
	ident, err := a.identity.SignInWithProvider(ctx, provider, secret)
	if err != nil {
		var authErr *identity.AuthError
		if errors.As(err, &authErr) {
			a.presenter.Error(authErr.Message)
		}
		return err
	}

	a.applyIdentity(ctx, ident)
	a.log.Info("Вход выполнен", "owner", ident.Display())
	return nil
}

// SignOut завершает сессию и очищает дашборд
func (a *App) SignOut(ctx context.Context) error {
	prev := a.Identity()

	if err := a.identity.SignOut(ctx); err != nil {
		return err
	}

	a.applyIdentity(ctx, nil)

	if prev != nil {
		if err := a.local.ForgetOwner(prev.ID); err != nil {
			a.log.Warn("Не удалось очистить локальный кэш", "error", err)
		}
	}
	return nil
}

// Notification возвращает видимое уведомление
func (a *App) Notification() *Notification {
	return a.presenter.Current()
}

// DismissNotification убирает тост, не дожидаясь таймера
func (a *App) DismissNotification() {
	a.presenter.Dismiss()
}

// OnNotification подписывает рендер на появление и исчезновение тостов
func (a *App) OnNotification(fn func(*Notification)) {
	a.presenter.SetOnChange(fn)
}

// Watch подписывает контроллеры на поток изменений и блокируется до
// сигнала завершения. Доступен только на бэкенде с push-каналом.
func (a *App) Watch(ctx context.Context) error {
	if a.feed == nil {
		return storage.ErrNoFeed
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	for _, ctrl := range a.controllers {
		if err := ctrl.Subscribe(ctx, a.feed); err != nil {
			cancel()
			return fmt.Errorf("ошибка подписки на изменения: %w", err)
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.watchIdentity(ctx)
	}()

	go a.handleSignals()

	a.log.Info("Наблюдение за дашбордом запущено",
		"backend", a.config.Backend,
		"env", a.config.Env,
	)

	<-ctx.Done()
	a.wg.Wait()
	return nil
}

// watchIdentity перезагружает дашборд при смене владельца
func (a *App) watchIdentity(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-a.identity.Changes():
			if !ok {
				return
			}
			a.log.Debug("Смена владельца", "signed_in", change.Identity != nil)
			a.applyIdentity(ctx, change.Identity)

			// Подписки привязаны к владельцу, перепривязываем.
			// Старые подписки снимает сам контроллер; записи прежнего
			// владельца и без того отбрасываются по полю owner.
			if change.Identity != nil && a.feed != nil {
				for _, ctrl := range a.controllers {
					if err := ctrl.Subscribe(ctx, a.feed); err != nil {
						a.log.Warn("Не удалось переподписаться", "entity", ctrl.Entity(), "error", err)
					}
				}
			}
		}
	}
}

func (a *App) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigChan
	a.log.Info("Получен сигнал завершения", "signal", sig.String())

	if a.cancel != nil {
		a.cancel()
	}
}

func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	for _, ctrl := range a.controllers {
		ctrl.Close()
	}

	var errs []error
	if a.closeRemote != nil {
		if err := a.closeRemote(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.local.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
