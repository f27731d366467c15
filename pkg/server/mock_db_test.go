package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aeolun/medius/pkg/database"
)

// memStore is an in-memory AccountStore for tests
type memStore struct {
	mu             sync.Mutex
	accounts       map[int64]*database.Account
	nextID         int64
	ipBans         map[string]bool
	machineBans    map[string]bool
	flags          database.ServerFlags
	announcements  []database.Announcement
	postedIPs      map[int64][]string
	postedMachines map[int64][]string
	failLookups    error
	closed         bool
}

func newMemStore() *memStore {
	return &memStore{
		accounts:       make(map[int64]*database.Account),
		ipBans:         make(map[string]bool),
		machineBans:    make(map[string]bool),
		postedIPs:      make(map[int64][]string),
		postedMachines: make(map[int64][]string),
	}
}

// addAccount stores an account with a hashed password
func (m *memStore) addAccount(appID int32, name, password string) *database.Account {
	acct, err := m.CreateAccount(context.Background(), database.NewAccount{AppID: appID, Name: name, Password: password})
	if err != nil {
		panic(err)
	}
	return acct
}

func (m *memStore) GetAccountByName(_ context.Context, name string, appID int32) (*database.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookups != nil {
		return nil, m.failLookups
	}
	for _, a := range m.accounts {
		if a.AppID == appID && strings.EqualFold(a.Name, name) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, database.ErrAccountNotFound
}

func (m *memStore) GetAccountByID(_ context.Context, id int64) (*database.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, database.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) CreateAccount(_ context.Context, in database.NewAccount) (*database.Account, error) {
	hash, err := database.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.AppID == in.AppID && strings.EqualFold(a.Name, in.Name) {
			return nil, database.ErrAccountExists
		}
	}
	m.nextID++
	a := &database.Account{
		ID:           m.nextID,
		AppID:        in.AppID,
		Name:         in.Name,
		PasswordHash: hash,
		AccountType:  in.AccountType,
		MachineID:    in.MachineID,
		CreatedAt:    time.Now().UnixMilli(),
	}
	m.accounts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *memStore) setBanned(id int64) {
	m.mu.Lock()
	m.accounts[id].Banned = true
	m.mu.Unlock()
}

func (m *memStore) PostAccountIP(accountID int64, ip string) {
	m.mu.Lock()
	m.postedIPs[accountID] = append(m.postedIPs[accountID], ip)
	m.mu.Unlock()
}

func (m *memStore) PostMachineID(accountID int64, machineID string) {
	m.mu.Lock()
	m.postedMachines[accountID] = append(m.postedMachines[accountID], machineID)
	m.mu.Unlock()
}

func (m *memStore) IsIPBanned(_ context.Context, ip string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ipBans[ip], nil
}

func (m *memStore) IsMachineBanned(_ context.Context, machineID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machineBans[machineID], nil
}

func (m *memStore) GetServerFlags(context.Context) (database.ServerFlags, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags, nil
}

func (m *memStore) ListAnnouncements(_ context.Context, appID int32, limit int) ([]database.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookups != nil {
		return nil, m.failLookups
	}
	var out []database.Announcement
	for _, a := range m.announcements {
		if a.AppID == appID || a.AppID == 0 {
			out = append(out, a)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
