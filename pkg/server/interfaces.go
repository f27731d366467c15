package server

import (
	"context"

	"github.com/aeolun/medius/pkg/database"
	"github.com/aeolun/medius/pkg/plugins"
)

// AccountStore defines the account operations the roles use.
// *database.DB implements it; tests substitute an in-memory store.
type AccountStore interface {
	GetAccountByName(ctx context.Context, name string, appID int32) (*database.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*database.Account, error)
	CreateAccount(ctx context.Context, in database.NewAccount) (*database.Account, error)

	// Buffered writes, fire and forget
	PostAccountIP(accountID int64, ip string)
	PostMachineID(accountID int64, machineID string)

	IsIPBanned(ctx context.Context, ip string) (bool, error)
	IsMachineBanned(ctx context.Context, machineID string) (bool, error)
	GetServerFlags(ctx context.Context) (database.ServerFlags, error)
	ListAnnouncements(ctx context.Context, appID int32, limit int) ([]database.Announcement, error)

	Close() error
}

// EventSink receives lifecycle hooks. Emit must not block.
type EventSink interface {
	Emit(ctx context.Context, event plugins.Event)
}

// TextFilter decides whether player-supplied text is acceptable
type TextFilter interface {
	PassTextFilter(appID int32, kind FilterKind, text string) bool
}

// FilterKind is the context a piece of text is checked in
type FilterKind string

const (
	FilterAccountName FilterKind = "account_name"
	FilterGameName    FilterKind = "game_name"
	FilterChat        FilterKind = "chat"
)

type nopSink struct{}

func (nopSink) Emit(context.Context, plugins.Event) {}
