package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"rtchat/internal/app/model"
)

const (
	accountPrefix  = "account:"
	usernamePrefix = "username:"
	groupPrefix    = "group:"
	messagePrefix  = "msg:"

	conflictRetries = 3
)

// Badger is the embedded durable Backend. Values are JSON documents; messages are keyed
// by conversation and nanosecond timestamp so a prefix scan yields them in order.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database at path. An empty path opens an in-memory
// instance.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &Badger{db: bdb}, nil
}

func (b *Badger) Name() string { return "badger" }

func (b *Badger) Close() error { return b.db.Close() }

func conversationKey(q model.MessageQuery) string {
	if q.GroupID != "" {
		return "g:" + q.GroupID
	}
	a, c := q.UserA, q.UserB
	if c < a {
		a, c = c, a
	}
	return "d:" + a + ":" + c
}

func messageKey(m model.Message) []byte {
	q := model.MessageQuery{UserA: m.SenderID, UserB: m.RecipientID}
	if m.IsGroup {
		q = model.MessageQuery{GroupID: m.RecipientID}
	}
	return fmt.Appendf(nil, "%s%s:%019d:%s", messagePrefix, conversationKey(q), m.Timestamp.UnixNano(), m.ID)
}

// update runs fn in a read-write transaction, retrying on optimistic conflicts.
func (b *Badger) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for range conflictRetries {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ErrDurability, ctxErr)
		}
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return b.classify(err)
}

func (b *Badger) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDurability, err)
	}
	return b.classify(b.db.View(fn))
}

func (b *Badger) classify(err error) error {
	switch {
	case err == nil, errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate):
		return err
	case errors.Is(err, badger.ErrKeyNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %v", ErrDurability, err)
	}
}

func getJSON(txn *badger.Txn, key string, dst any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(key, data)
}

func exists(txn *badger.Txn, key string) bool {
	_, err := txn.Get([]byte(key))
	return err == nil
}

// storedAccount carries the credential fields model.Account keeps out of JSON responses.
type storedAccount struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    int64  `json:"createdAt"`
}

func (b *Badger) SaveAccount(ctx context.Context, account model.Account) (model.Account, error) {
	err := b.update(ctx, func(txn *badger.Txn) error {
		if exists(txn, usernamePrefix+account.Username) || exists(txn, accountPrefix+account.ID) {
			return ErrDuplicate
		}
		stored := storedAccount{
			ID:           account.ID,
			Username:     account.Username,
			PasswordHash: account.PasswordHash,
			CreatedAt:    account.CreatedAt.UnixNano(),
		}
		if err := setJSON(txn, []byte(accountPrefix+account.ID), stored); err != nil {
			return err
		}
		return txn.Set([]byte(usernamePrefix+account.Username), []byte(account.ID))
	})
	if err != nil {
		return model.Account{}, err
	}
	return account, nil
}

func (b *Badger) FindAccountByID(ctx context.Context, id string) (model.Account, error) {
	var stored storedAccount
	err := b.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, accountPrefix+id, &stored)
	})
	if err != nil {
		return model.Account{}, err
	}
	return stored.account(), nil
}

func (b *Badger) FindAccountByUsername(ctx context.Context, username string) (model.Account, error) {
	var stored storedAccount
	err := b.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(usernamePrefix + username))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, accountPrefix+string(id), &stored)
	})
	if err != nil {
		return model.Account{}, err
	}
	return stored.account(), nil
}

func (b *Badger) ListUsers(ctx context.Context) ([]model.User, error) {
	var accounts []model.Account
	err := b.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, accountPrefix, false, func(val []byte) (bool, error) {
			var stored storedAccount
			if err := json.Unmarshal(val, &stored); err != nil {
				return false, err
			}
			accounts = append(accounts, stored.account())
			return true, nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(accounts, func(a, c model.Account) int {
		if n := a.CreatedAt.Compare(c.CreatedAt); n != 0 {
			return n
		}
		return strings.Compare(a.ID, c.ID)
	})
	users := make([]model.User, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, a.User())
	}
	return users, nil
}

func (b *Badger) SaveGroup(ctx context.Context, group model.Group) (model.Group, error) {
	group = group.Clone()
	err := b.update(ctx, func(txn *badger.Txn) error {
		if exists(txn, groupPrefix+group.ID) {
			return ErrDuplicate
		}
		return setJSON(txn, []byte(groupPrefix+group.ID), group)
	})
	if err != nil {
		return model.Group{}, err
	}
	return group, nil
}

func (b *Badger) FindGroup(ctx context.Context, id string) (model.Group, error) {
	var group model.Group
	err := b.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, groupPrefix+id, &group)
	})
	if err != nil {
		return model.Group{}, err
	}
	return group.Clone(), nil
}

func (b *Badger) ListGroups(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	err := b.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, groupPrefix, false, func(val []byte) (bool, error) {
			var g model.Group
			if err := json.Unmarshal(val, &g); err != nil {
				return false, err
			}
			groups = append(groups, g.Clone())
			return true, nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(groups, func(a, c model.Group) int {
		if n := a.CreatedAt.Compare(c.CreatedAt); n != 0 {
			return n
		}
		return strings.Compare(a.ID, c.ID)
	})
	return groups, nil
}

func (b *Badger) AddGroupMember(ctx context.Context, groupID, userID string) (model.Group, error) {
	var group model.Group
	err := b.update(ctx, func(txn *badger.Txn) error {
		group = model.Group{}
		if err := getJSON(txn, groupPrefix+groupID, &group); err != nil {
			return err
		}
		if group.HasMember(userID) {
			return nil
		}
		group.Members = append(group.Members, userID)
		return setJSON(txn, []byte(groupPrefix+groupID), group)
	})
	if err != nil {
		return model.Group{}, err
	}
	return group.Clone(), nil
}

func (b *Badger) SaveMessage(ctx context.Context, message model.Message) (model.Message, error) {
	err := b.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, messageKey(message), message)
	})
	if err != nil {
		return model.Message{}, err
	}
	return message, nil
}

func (b *Badger) ListMessages(ctx context.Context, query model.MessageQuery) ([]model.Message, error) {
	prefix := messagePrefix + conversationKey(query) + ":"

	var messages []model.Message
	err := b.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, prefix, true, func(val []byte) (bool, error) {
			var m model.Message
			if err := json.Unmarshal(val, &m); err != nil {
				return false, err
			}
			messages = append(messages, m)
			return query.Limit <= 0 || len(messages) < query.Limit, nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

// scanPrefix visits every value under prefix until fn returns false. A reverse scan
// starts from the greatest key in the prefix.
func scanPrefix(txn *badger.Txn, prefix string, reverse bool, fn func(val []byte) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.Reverse = reverse

	it := txn.NewIterator(opts)
	defer it.Close()

	seek := []byte(prefix)
	if reverse {
		seek = append(seek, 0xFF)
	}

	for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
		var more bool
		err := it.Item().Value(func(val []byte) error {
			var err error
			more, err = fn(val)
			return err
		})
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func (s storedAccount) account() model.Account {
	return model.Account{
		ID:           s.ID,
		Username:     s.Username,
		PasswordHash: s.PasswordHash,
		CreatedAt:    timeFromNanos(s.CreatedAt),
	}
}

func timeFromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
