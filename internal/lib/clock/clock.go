// Package clock предоставляет источник текущего времени с возможностью
// подмены в тестах. Все проверки "устарел ли таймстемп" в сервисе
// используют именно этот интерфейс, а не time.Now напрямую.
package clock

import "time"

// Clock описывает источник текущего времени.
type Clock interface {
	Now() time.Time
}

// Real возвращает системное время.
type Real struct{}

// Now возвращает time.Now.
func (Real) Now() time.Time {
	return time.Now()
}

// Fake — управляемые часы для тестов.
type Fake struct {
	Current time.Time
}

// NewFake создает Fake с заданным начальным временем.
func NewFake(t time.Time) *Fake {
	return &Fake{Current: t}
}

// Now возвращает текущее установленное время.
func (f *Fake) Now() time.Time {
	return f.Current
}

// Advance сдвигает часы вперед на d.
func (f *Fake) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
