// Package session содержит логику бизнес-уровня для загрузки и сверки
// сессии пользователя: примирение сохранённых учётных данных с живой
// проверкой на бэкенде, защита сессии во время платёжного потока
// и публичные операции входа, выхода и работы с профилем.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/studyhub/session-guard/internal/backend"
	"github.com/studyhub/session-guard/internal/entitlement"
	"github.com/studyhub/session-guard/internal/lib/clock"
	"github.com/studyhub/session-guard/internal/lib/sl"
	"github.com/studyhub/session-guard/internal/models"
)

// Backend описывает контракт REST-бэкенда платформы.
type Backend interface {
	// Login аутентифицирует пользователя и возвращает токен и снимок.
	Login(ctx context.Context, username, password string) (string, *models.UserSnapshot, error)

	// WhoAmI проверяет токен. Невалидный токен — backend.ErrUnauthorized,
	// проблемы связи — любая другая ошибка.
	WhoAmI(ctx context.Context, token string) (*models.UserSnapshot, error)

	// UpdateProfile частично обновляет профиль и возвращает свежий снимок.
	UpdateProfile(ctx context.Context, token string, fields map[string]any) (*models.UserSnapshot, error)

	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (string, *models.UserSnapshot, bool, error)
	ResendOTP(ctx context.Context, phone string) error
}

// CredentialStore описывает контракт хранилища учётных данных.
type CredentialStore interface {
	Save(ctx context.Context, uid, token string, snapshot *models.UserSnapshot) error
	Load(ctx context.Context, uid string) (*models.Session, error)
	Clear(ctx context.Context, uid string) error
}

// PaymentFlow описывает проверки платёжного маркера, нужные загрузчику.
type PaymentFlow interface {
	Flag(ctx context.Context, uid string) (models.PaymentFlag, error)
	ValidForSessionPreservation(flag models.PaymentFlag) bool
}

// State — состояние сессии после загрузки. Loading всегда false
// на выходе из Load: загрузчик обязан "устаканиться" на любой ветке.
type State struct {
	Loading       bool
	Authenticated bool
	Snapshot      *models.UserSnapshot
	Entitlements  entitlement.State
}

// Service реализует загрузчик сессии и публичные операции.
type Service struct {
	backend           Backend
	store             CredentialStore
	flow              PaymentFlow
	clk               clock.Clock
	log               *slog.Logger
	paymentReturnPath string

	// Счётчик поколений на пользователя: фоновая сверка применяет свой
	// результат только если её поколение всё ещё актуально, чтобы
	// запоздавший ответ не перезаписал более новое состояние сессии.
	mu          sync.Mutex
	generations map[string]uint64
}

// New создает новый Service.
func New(b Backend, store CredentialStore, flow PaymentFlow, clk clock.Clock,
	log *slog.Logger, paymentReturnPath string) *Service {
	return &Service{
		backend:           b,
		store:             store,
		flow:              flow,
		clk:               clk,
		log:               log,
		paymentReturnPath: paymentReturnPath,
		generations:       make(map[string]uint64),
	}
}

func (s *Service) nextGeneration(uid string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[uid]++
	return s.generations[uid]
}

func (s *Service) generationCurrent(uid string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[uid] == gen
}

// settle строит итоговое состояние по снимку. Токен без читаемого
// снимка аутентификацией не считается.
func (s *Service) settle(snapshot *models.UserSnapshot) State {
	if snapshot == nil {
		return State{}
	}
	return State{
		Authenticated: true,
		Snapshot:      snapshot,
		Entitlements:  entitlement.Evaluate(snapshot, s.clk.Now()),
	}
}

// Load сверяет сохранённую сессию с бэкендом и возвращает устаканенное
// состояние. path — текущая цель навигации: на пути возврата с оплаты
// живая проверка уходит в фон, а кешированный снимок принимается сразу.
//
// Уничтожить учётные данные может только явный отказ в авторизации,
// наблюдаемый в момент, когда платёжный маркер сессию не защищает.
// Любой другой отказ транзиентен и сохраняет последнюю рабочую сессию.
func (s *Service) Load(ctx context.Context, uid, path string) State {
	const op = "session.Load"
	log := s.log.With(slog.String("op", op), slog.String("uid", uid))

	gen := s.nextGeneration(uid)

	sess, err := s.store.Load(ctx, uid)
	if err != nil {
		log.Error("failed to read credential store", sl.Err(err))
		return State{}
	}
	if sess == nil || sess.Token == "" {
		return State{}
	}

	flag, err := s.flow.Flag(ctx, uid)
	if err != nil {
		log.Warn("failed to read payment flag", sl.Err(err))
	}
	if s.flow.ValidForSessionPreservation(flag) || path == s.paymentReturnPath {
		// Платёжный поток: кешированный снимок принимается немедленно,
		// сверка уходит в фон и ни при каком исходе не чистит учётные данные.
		go s.refresh(uid, sess.Token, gen)
		return s.settle(sess.Snapshot)
	}

	snapshot, err := s.backend.WhoAmI(ctx, sess.Token)
	switch {
	case err == nil:
		if err := s.store.Save(ctx, uid, sess.Token, snapshot); err != nil {
			log.Warn("failed to persist fresh snapshot", sl.Err(err))
		}
		return s.settle(snapshot)

	case errors.Is(err, backend.ErrUnauthorized):
		// Маркер мог взвестись, пока шла проверка: перечитываем его
		// прямо перед очисткой, иначе остаётся окно, в котором уходящий
		// на оплату пользователь теряет сессию.
		flag, flagErr := s.flow.Flag(ctx, uid)
		if flagErr == nil && s.flow.ValidForSessionPreservation(flag) {
			log.Info("unauthorized during payment flow, keeping cached session")
			return s.settle(sess.Snapshot)
		}
		log.Info("token rejected by backend, clearing credentials")
		if err := s.store.Clear(ctx, uid); err != nil {
			log.Error("failed to clear credential store", sl.Err(err))
		}
		return State{}

	default:
		log.Warn("backend unreachable, falling back to cached snapshot", sl.Err(err))
		return s.settle(sess.Snapshot)
	}
}

// refresh — фоновая сверка лучшей попытки. Неудача молча сохраняет
// кешированный снимок; успех применяется только в актуальном поколении.
func (s *Service) refresh(uid, token string, gen uint64) {
	const op = "session.refresh"
	ctx := context.Background()

	snapshot, err := s.backend.WhoAmI(ctx, token)
	if err != nil {
		s.log.Debug("background re-verification failed, keeping cached snapshot",
			slog.String("op", op), sl.Err(err))
		return
	}
	if !s.generationCurrent(uid, gen) {
		return
	}
	if err := s.store.Save(ctx, uid, token, snapshot); err != nil {
		s.log.Warn("failed to persist re-verified snapshot", slog.String("op", op), sl.Err(err))
	}
}

// GetCurrentUser — повторная загрузка сессии по требованию.
func (s *Service) GetCurrentUser(ctx context.Context, uid, path string) (State, models.Result) {
	st := s.Load(ctx, uid, path)
	if !st.Authenticated {
		return st, models.Fail("not authenticated")
	}
	return st, models.OK()
}

// Login выполняет вход по логину и паролю. При успехе учётные данные
// сохраняются как единое целое.
func (s *Service) Login(ctx context.Context, username, password string) (*models.UserSnapshot, models.Result) {
	const op = "session.Login"
	log := s.log.With(slog.String("op", op), slog.String("username", username))

	token, snapshot, err := s.backend.Login(ctx, username, password)
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		log.Info("invalid credentials")
		return nil, models.Fail("invalid credentials")
	case err != nil:
		log.Error("login failed", sl.Err(err))
		return nil, models.Fail("service unavailable, try again later")
	}
	if snapshot == nil {
		return nil, models.Fail("service unavailable, try again later")
	}
	if err := s.store.Save(ctx, snapshot.UID, token, snapshot); err != nil {
		log.Error("failed to save credentials", sl.Err(err))
		return nil, models.Fail("service unavailable, try again later")
	}
	log.Info("login success")
	return snapshot, models.OK()
}

// Logout уничтожает сохранённые учётные данные.
func (s *Service) Logout(ctx context.Context, uid string) models.Result {
	const op = "session.Logout"
	if err := s.store.Clear(ctx, uid); err != nil {
		s.log.Error("failed to clear credentials", slog.String("op", op), sl.Err(err))
		return models.Fail("failed to log out")
	}
	s.nextGeneration(uid)
	return models.OK()
}

// UpdateUser частично обновляет профиль и пересохраняет снимок.
func (s *Service) UpdateUser(ctx context.Context, uid string, fields map[string]any) (*models.UserSnapshot, models.Result) {
	const op = "session.UpdateUser"
	log := s.log.With(slog.String("op", op), slog.String("uid", uid))

	sess, err := s.store.Load(ctx, uid)
	if err != nil || sess == nil || sess.Token == "" {
		return nil, models.Fail("not authenticated")
	}
	snapshot, err := s.backend.UpdateProfile(ctx, sess.Token, fields)
	if err != nil {
		log.Error("profile update failed", sl.Err(err))
		return nil, models.Fail("failed to update profile")
	}
	if err := s.store.Save(ctx, uid, sess.Token, snapshot); err != nil {
		log.Warn("failed to persist updated snapshot", sl.Err(err))
	}
	return snapshot, models.OK()
}

// SendOTP запрашивает отправку одноразового кода.
func (s *Service) SendOTP(ctx context.Context, phone string) models.Result {
	const op = "session.SendOTP"
	if err := s.backend.SendOTP(ctx, phone); err != nil {
		s.log.Error("failed to send otp", slog.String("op", op), sl.Err(err))
		return models.Fail("failed to send code")
	}
	return models.OK()
}

// VerifyOTP проверяет код и при успехе создает сессию.
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (*models.UserSnapshot, bool, models.Result) {
	const op = "session.VerifyOTP"
	log := s.log.With(slog.String("op", op))

	token, snapshot, isNew, err := s.backend.VerifyOTP(ctx, phone, code)
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		return nil, false, models.Fail("invalid code")
	case err != nil:
		log.Error("otp verification failed", sl.Err(err))
		return nil, false, models.Fail("service unavailable, try again later")
	}
	if snapshot == nil {
		return nil, false, models.Fail("service unavailable, try again later")
	}
	if err := s.store.Save(ctx, snapshot.UID, token, snapshot); err != nil {
		log.Error("failed to save credentials", sl.Err(err))
		return nil, false, models.Fail("service unavailable, try again later")
	}
	return snapshot, isNew, models.OK()
}

// ResendOTP повторно отправляет одноразовый код.
func (s *Service) ResendOTP(ctx context.Context, phone string) models.Result {
	const op = "session.ResendOTP"
	if err := s.backend.ResendOTP(ctx, phone); err != nil {
		s.log.Error("failed to resend otp", slog.String("op", op), sl.Err(err))
		return models.Fail("failed to resend code")
	}
	return models.OK()
}

// Token возвращает бэкенд-токен текущей сессии, если она есть.
func (s *Service) Token(ctx context.Context, uid string) (string, error) {
	sess, err := s.store.Load(ctx, uid)
	if err != nil {
		return "", err
	}
	if sess == nil || sess.Token == "" {
		return "", fmt.Errorf("session.Token: no session for user")
	}
	return sess.Token, nil
}
