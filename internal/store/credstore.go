// Package store реализует хранилище учётных данных сессии на основе Redis.
//
// Токен бэкенда и снимок пользователя записываются и очищаются как единое
// целое; три ключа платёжного маркера живут независимо от них. Хранилище
// не делает никаких сетевых вызовов, кроме обращений к самому Redis.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studyhub/session-guard/internal/config"
	"github.com/studyhub/session-guard/internal/models"
)

// Store инкапсулирует подключение к Redis и реализует операции
// над учётными данными и платёжным маркером.
type Store struct {
	Db *redis.Client
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Store, error) {
	const op = "store.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{Db: db}, nil
}

func tokenKey(uid string) string   { return fmt.Sprintf("session:%s:token", uid) }
func userKey(uid string) string    { return fmt.Sprintf("session:%s:user", uid) }
func flagKey(uid string) string    { return fmt.Sprintf("payment:%s:inprogress", uid) }
func orderKey(uid string) string   { return fmt.Sprintf("payment:%s:orderid", uid) }
func startedKey(uid string) string { return fmt.Sprintf("payment:%s:startedat", uid) }

// Save записывает токен и снимок пользователя одной транзакцией.
// Частичная запись невозможна: либо коммитятся оба ключа, либо ни одного.
func (s *Store) Save(ctx context.Context, uid, token string, snapshot *models.UserSnapshot) error {
	const op = "store.Save"
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	pipe := s.Db.TxPipeline()
	pipe.Set(ctx, tokenKey(uid), token, 0)
	pipe.Set(ctx, userKey(uid), data, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Load возвращает сохранённую сессию пользователя.
// Если токена нет — возвращает nil без ошибки. Испорченный снимок
// не считается отсутствием сессии: токен возвращается, снимок — nil,
// дальнейшее решение принимает вызывающая сторона.
func (s *Store) Load(ctx context.Context, uid string) (*models.Session, error) {
	const op = "store.Load"
	token, err := s.Db.Get(ctx, tokenKey(uid)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sess := &models.Session{Token: token}
	raw, err := s.Db.Get(ctx, userKey(uid)).Result()
	if err == redis.Nil {
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var snapshot models.UserSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err == nil {
		sess.Snapshot = &snapshot
	}
	return sess, nil
}

// Clear удаляет токен и снимок пользователя.
func (s *Store) Clear(ctx context.Context, uid string) error {
	const op = "store.Clear"
	if err := s.Db.Del(ctx, tokenKey(uid), userKey(uid)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SaveFlag записывает три ключа платёжного маркера одной транзакцией.
func (s *Store) SaveFlag(ctx context.Context, uid string, flag models.PaymentFlag) error {
	const op = "store.SaveFlag"
	pipe := s.Db.TxPipeline()
	pipe.Set(ctx, flagKey(uid), flag.InProgress, 0)
	pipe.Set(ctx, orderKey(uid), flag.OrderID, 0)
	pipe.Set(ctx, startedKey(uid), flag.StartedAt.Format(time.RFC3339Nano), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LoadFlag возвращает платёжный маркер. Отсутствующий или нечитаемый
// маркер возвращается как невзведённый.
func (s *Store) LoadFlag(ctx context.Context, uid string) (models.PaymentFlag, error) {
	const op = "store.LoadFlag"
	inProgress, err := s.Db.Get(ctx, flagKey(uid)).Bool()
	if err == redis.Nil {
		return models.PaymentFlag{}, nil
	}
	if err != nil {
		return models.PaymentFlag{}, fmt.Errorf("%s: %w", op, err)
	}

	orderID, err := s.Db.Get(ctx, orderKey(uid)).Result()
	if err != nil && err != redis.Nil {
		return models.PaymentFlag{}, fmt.Errorf("%s: %w", op, err)
	}
	rawStarted, err := s.Db.Get(ctx, startedKey(uid)).Result()
	if err != nil && err != redis.Nil {
		return models.PaymentFlag{}, fmt.Errorf("%s: %w", op, err)
	}
	startedAt, err := time.Parse(time.RFC3339Nano, rawStarted)
	if err != nil {
		return models.PaymentFlag{}, nil
	}
	return models.PaymentFlag{
		InProgress: inProgress,
		OrderID:    orderID,
		StartedAt:  startedAt,
	}, nil
}

// ClearFlag удаляет ключи платёжного маркера.
func (s *Store) ClearFlag(ctx context.Context, uid string) error {
	const op = "store.ClearFlag"
	if err := s.Db.Del(ctx, flagKey(uid), orderKey(uid), startedKey(uid)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
