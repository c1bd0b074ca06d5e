// Package jwt реализует генерацию и парсинг сессионных JWT токенов шлюза.
//
// Сервис не отдаёт клиенту бэкенд‑токен напрямую: после входа он выпускает
// собственный подписанный токен с идентификатором пользователя, а бэкенд‑токен
// остаётся в хранилище учётных данных на стороне сервиса.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для генерации и парсинга сессионных токенов.
type Maker interface {
	// GenerateToken создает токен с указанием username и uid пользователя.
	GenerateToken(username, useruid string) (string, error)
	// ParseToken возвращает *CustomClaims с username и uid.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
