// Package mocks provides mock implementations for testing synergy-web.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the ports interfaces.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockPrincipalStore(ctrl)
//	store.EXPECT().Load(gomock.Any(), "visitor:loggedInUser").Return(ports.SessionSnapshot{Principal: principal}, nil)
package mocks

// Generate mocks for the session-facing ports:
// IdentityAPI (Validate, Login, Logout), PrincipalStore (Load, Save, Delete), TokenSource (FetchCSRFToken).
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/synergyaccounting/synergy-web/internal/ports IdentityAPI,PrincipalStore,TokenSource
