// Package guard реализует решение о доступе к защищённому маршруту
// по состоянию сессии, правам доступа и запрошенному пути.
package guard

import (
	"strings"

	"github.com/studyhub/session-guard/internal/entitlement"
)

// Decision — терминальное решение охранника маршрутов.
type Decision string

const (
	// DecisionLoading — сессия ещё не загружена, решение не принимается.
	DecisionLoading Decision = "loading"
	// DecisionRedirectLogin — пользователь не аутентифицирован.
	DecisionRedirectLogin Decision = "redirect-login"
	// DecisionRedirectPlans — нет активной подписки и путь вне allow-list.
	DecisionRedirectPlans Decision = "redirect-plans"
	// DecisionExpiryModal — контент показывается под неснимаемой модалкой
	// об истечении подписки: страница остаётся смонтированной, но инертной,
	// чтобы не потерять локальное состояние и дать дойти до страницы тарифов.
	DecisionExpiryModal Decision = "expiry-modal"
	// DecisionAllow — доступ разрешён.
	DecisionAllow Decision = "allow"
)

// Пути навигации портала.
const (
	LoginPath = "/login"
	PlansPath = "/subscription-plans"
)

// State — вход охранника: состояние загрузки, аутентификации и права доступа.
type State struct {
	Loading       bool
	Authenticated bool
	Entitlements  entitlement.State
}

// Фиксированный набор путей, доступных без активной подписки.
// Префиксные записи покрывают параметризованные под-маршруты.
var (
	allowExact = map[string]struct{}{
		"/dashboard":            {},
		PlansPath:               {},
		"/notifications":        {},
		"/referral":             {},
		"/delete-account":       {},
		"/subscription-history": {},
	}
	allowPrefixes = []string{
		"/profile",
		"/content",
	}
)

// OnAllowList сообщает, доступен ли путь без активной подписки.
// Поддерживается точное совпадение и совпадение по префиксу сегментов.
func OnAllowList(path string) bool {
	if _, ok := allowExact[path]; ok {
		return true
	}
	for _, prefix := range allowPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Decide возвращает решение для состояния st и запрошенного пути.
// Переходы происходят при каждой навигации и каждом обновлении снимка.
func Decide(st State, path string) Decision {
	if st.Loading {
		return DecisionLoading
	}
	if !st.Authenticated {
		return DecisionRedirectLogin
	}
	onAllowList := OnAllowList(path)
	if !st.Entitlements.HasActiveSubscription && !onAllowList {
		return DecisionRedirectPlans
	}
	if st.Entitlements.IsSubscriptionExpired && path != PlansPath {
		return DecisionExpiryModal
	}
	return DecisionAllow
}

// RedirectTarget возвращает путь редиректа для решений-редиректов
// и пустую строку для остальных.
func RedirectTarget(d Decision) string {
	switch d {
	case DecisionRedirectLogin:
		return LoginPath
	case DecisionRedirectPlans:
		return PlansPath
	default:
		return ""
	}
}
