package store

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"

	"rtchat/internal/app/model"
)

// Memory is a process-local Backend. Its contents are lost on restart.
type Memory struct {
	mu sync.RWMutex

	accounts   map[string]model.Account
	usernames  map[string]string
	userOrder  []string
	groups     map[string]model.Group
	groupOrder []string
	messages   []model.Message
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		accounts:  make(map[string]model.Account),
		usernames: make(map[string]string),
		groups:    make(map[string]model.Group),
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Close() error { return nil }

func (m *Memory) SaveAccount(_ context.Context, account model.Account) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.usernames[account.Username]; taken {
		return model.Account{}, ErrDuplicate
	}
	if _, taken := m.accounts[account.ID]; taken {
		return model.Account{}, ErrDuplicate
	}

	m.accounts[account.ID] = account
	m.usernames[account.Username] = account.ID
	m.userOrder = append(m.userOrder, account.ID)
	return account, nil
}

func (m *Memory) FindAccountByID(_ context.Context, id string) (model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[id]
	if !ok {
		return model.Account{}, ErrNotFound
	}
	return account, nil
}

func (m *Memory) FindAccountByUsername(_ context.Context, username string) (model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usernames[username]
	if !ok {
		return model.Account{}, ErrNotFound
	}
	return m.accounts[id], nil
}

func (m *Memory) ListUsers(_ context.Context) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return lo.Map(m.userOrder, func(id string, _ int) model.User {
		return m.accounts[id].User()
	}), nil
}

func (m *Memory) SaveGroup(_ context.Context, group model.Group) (model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.groups[group.ID]; exists {
		return model.Group{}, ErrDuplicate
	}

	group = group.Clone()
	group.Members = lo.Uniq(group.Members)
	m.groups[group.ID] = group
	m.groupOrder = append(m.groupOrder, group.ID)
	return group.Clone(), nil
}

func (m *Memory) FindGroup(_ context.Context, id string) (model.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	group, ok := m.groups[id]
	if !ok {
		return model.Group{}, ErrNotFound
	}
	return group.Clone(), nil
}

func (m *Memory) ListGroups(_ context.Context) ([]model.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return lo.Map(m.groupOrder, func(id string, _ int) model.Group {
		return m.groups[id].Clone()
	}), nil
}

func (m *Memory) AddGroupMember(_ context.Context, groupID, userID string) (model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	group, ok := m.groups[groupID]
	if !ok {
		return model.Group{}, ErrNotFound
	}

	if !group.HasMember(userID) {
		group.Members = append(group.Clone().Members, userID)
		m.groups[groupID] = group
	}
	return group.Clone(), nil
}

func (m *Memory) SaveMessage(_ context.Context, message model.Message) (model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, message)
	return message, nil
}

func (m *Memory) ListMessages(_ context.Context, query model.MessageQuery) ([]model.Message, error) {
	m.mu.RLock()
	matched := lo.Filter(m.messages, func(msg model.Message, _ int) bool {
		return query.Matches(msg)
	})
	m.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b model.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return keepNewest(matched, query.Limit), nil
}

// putAccount inserts or replaces an account copied from another tier.
func (m *Memory) putAccount(account model.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, known := m.accounts[account.ID]; !known {
		m.userOrder = append(m.userOrder, account.ID)
	}
	m.accounts[account.ID] = account
	m.usernames[account.Username] = account.ID
}

// putGroup records a group copied from another tier, keeping the union of both member sets.
// It returns the merged group.
func (m *Memory) putGroup(group model.Group) model.Group {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, known := m.groups[group.ID]
	if !known {
		m.groupOrder = append(m.groupOrder, group.ID)
		current = group.Clone()
		current.Members = lo.Uniq(current.Members)
	} else {
		members := lo.Union(group.Members, current.Members)
		current = group.Clone()
		current.Members = members
	}
	m.groups[group.ID] = current
	return current.Clone()
}
