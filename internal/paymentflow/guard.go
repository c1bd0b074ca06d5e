// Package paymentflow реализует ограниченный по времени маркер платёжного
// потока с двумя разными окнами валидности.
//
// Окно сохранения сессии (по умолчанию 30 минут) должно покрывать весь
// правдоподобный круг редиректа на шлюз и возврата обратно, включая
// медленные шлюзы. Окно защиты от повторной отправки (5 минут) блокирует
// только почти одновременные повторные попытки оплаты. Одно окно на оба
// решения либо блокировало бы легитимный повтор после неудачного платежа,
// либо переставало бы защищать от дублей задолго до конца редиректа.
package paymentflow

import (
	"context"
	"fmt"
	"time"

	"github.com/studyhub/session-guard/internal/lib/clock"
	"github.com/studyhub/session-guard/internal/models"
)

// FlagStore описывает контракт хранения платёжного маркера.
type FlagStore interface {
	SaveFlag(ctx context.Context, uid string, flag models.PaymentFlag) error
	LoadFlag(ctx context.Context, uid string) (models.PaymentFlag, error)
	ClearFlag(ctx context.Context, uid string) error
}

// Guard отвечает за запись и проверку платёжного маркера.
// Все сравнения таймстемпов с текущим временем живут здесь,
// часы инжектируются для тестирования.
type Guard struct {
	store              FlagStore
	clk                clock.Clock
	preservationWindow time.Duration
	duplicateWindow    time.Duration
}

// New создает новый Guard.
func New(store FlagStore, clk clock.Clock, preservationWindow, duplicateWindow time.Duration) *Guard {
	return &Guard{
		store:              store,
		clk:                clk,
		preservationWindow: preservationWindow,
		duplicateWindow:    duplicateWindow,
	}
}

// Begin взводит маркер непосредственно перед редиректом на платёжный шлюз.
func (g *Guard) Begin(ctx context.Context, uid, orderID string) error {
	const op = "paymentflow.Begin"
	flag := models.PaymentFlag{
		InProgress: true,
		OrderID:    orderID,
		StartedAt:  g.clk.Now(),
	}
	if err := g.store.SaveFlag(ctx, uid, flag); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Flag возвращает маркер как есть. Протухший маркер не удаляется,
// а просто игнорируется проверками валидности.
func (g *Guard) Flag(ctx context.Context, uid string) (models.PaymentFlag, error) {
	return g.store.LoadFlag(ctx, uid)
}

// ValidForSessionPreservation сообщает, защищает ли маркер сессию
// от инвалидации: взведён и моложе окна сохранения.
func (g *Guard) ValidForSessionPreservation(flag models.PaymentFlag) bool {
	return flag.InProgress && g.clk.Now().Sub(flag.StartedAt) < g.preservationWindow
}

// ValidForDuplicateGuard сообщает, блокирует ли маркер повторную
// отправку платежа: взведён и моложе окна защиты от дублей.
func (g *Guard) ValidForDuplicateGuard(flag models.PaymentFlag) bool {
	return flag.InProgress && g.clk.Now().Sub(flag.StartedAt) < g.duplicateWindow
}

// End снимает маркер. Вызывается при получении колбэка от шлюза,
// как при успешном, так и при неуспешном платеже.
func (g *Guard) End(ctx context.Context, uid string) error {
	const op = "paymentflow.End"
	if err := g.store.ClearFlag(ctx, uid); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
