package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"rtchat/internal/app/model"
	"rtchat/internal/pkg/logx"
	"rtchat/internal/pkg/telemetry"
)

// DefaultTimeout bounds every durable call when no timeout is configured.
const DefaultTimeout = 2 * time.Second

const (
	tierDurable = "durable"
	tierMemory  = "memory"
)

// Tiered is the Backend the rest of the server talks to.
//
// Every call is sent to the durable tier first under a bounded timeout. A definite answer
// (a value, ErrNotFound or ErrDuplicate) is returned as is; any other failure is logged,
// counted and the call is served by the memory tier instead, so callers never observe
// ErrDurability. Entities the durable tier returns are mirrored into memory so they stay
// reachable during an outage. Lookups that miss in the durable tier also consult memory,
// and listings merge both tiers.
//
// Data that only reached the memory tier is lost on restart.
type Tiered struct {
	durable Backend
	memory  *Memory
	timeout time.Duration

	logger zerolog.Logger
	calls  metric.Int64Counter
}

// NewTiered composes durable with memory. A nil durable backend yields a memory-only store.
func NewTiered(durable Backend, memory *Memory, timeout time.Duration) *Tiered {
	if memory == nil {
		memory = NewMemory()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tiered{
		durable: durable,
		memory:  memory,
		timeout: timeout,
		logger:  logx.Component("store"),
		calls:   telemetry.Counter("rtchat/store", "rtchat.store.calls", "Storage calls by operation, serving tier and outcome"),
	}
}

func (t *Tiered) Name() string {
	if t.durable == nil {
		return tierMemory
	}
	return t.durable.Name() + "+" + tierMemory
}

// Durable reports whether a durable backend is configured.
func (t *Tiered) Durable() bool {
	return t.durable != nil
}

func (t *Tiered) Close() error {
	if t.durable == nil {
		return t.memory.Close()
	}
	return errors.Join(t.durable.Close(), t.memory.Close())
}

func (t *Tiered) record(ctx context.Context, op, tier, outcome string) {
	t.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("tier", tier),
		attribute.String("outcome", outcome),
	))
}

// durableCall runs call against the durable tier. served is false when there is no durable
// tier or it failed with a fault, in which case the caller must use the memory tier.
func durableCall[T any](ctx context.Context, t *Tiered, op string, call func(ctx context.Context, b Backend) (T, error)) (v T, served bool, err error) {
	if t.durable == nil {
		t.record(ctx, op, tierMemory, "ok")
		return v, false, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	v, err = call(callCtx, t.durable)
	if isResult(err) {
		t.record(ctx, op, tierDurable, "ok")
		return v, true, err
	}

	t.logger.Warn().
		Err(err).
		Str("op", op).
		Str("backend", t.durable.Name()).
		Dur("timeout", t.timeout).
		Msg("Durable store call failed, serving from memory")
	t.record(ctx, op, tierMemory, "fallback")

	var zero T
	return zero, false, nil
}

func (t *Tiered) SaveAccount(ctx context.Context, account model.Account) (model.Account, error) {
	saved, served, err := durableCall(ctx, t, "save_account", func(ctx context.Context, b Backend) (model.Account, error) {
		return b.SaveAccount(ctx, account)
	})
	if !served {
		return t.memory.SaveAccount(ctx, account)
	}
	if err == nil {
		t.memory.putAccount(saved)
	}
	return saved, err
}

func (t *Tiered) FindAccountByID(ctx context.Context, id string) (model.Account, error) {
	return t.findAccount(ctx, "find_account", func(ctx context.Context, b Backend) (model.Account, error) {
		return b.FindAccountByID(ctx, id)
	})
}

func (t *Tiered) FindAccountByUsername(ctx context.Context, username string) (model.Account, error) {
	return t.findAccount(ctx, "find_account_by_username", func(ctx context.Context, b Backend) (model.Account, error) {
		return b.FindAccountByUsername(ctx, username)
	})
}

func (t *Tiered) findAccount(ctx context.Context, op string, find func(ctx context.Context, b Backend) (model.Account, error)) (model.Account, error) {
	account, served, err := durableCall(ctx, t, op, find)
	if served && err == nil {
		t.memory.putAccount(account)
		return account, nil
	}
	return find(ctx, t.memory)
}

func (t *Tiered) ListUsers(ctx context.Context) ([]model.User, error) {
	durable, served, err := durableCall(ctx, t, "list_users", func(ctx context.Context, b Backend) ([]model.User, error) {
		return b.ListUsers(ctx)
	})
	if !served || err != nil {
		durable = nil
	}

	memory, err := t.memory.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return lo.UniqBy(append(durable, memory...), func(u model.User) string { return u.ID }), nil
}

func (t *Tiered) SaveGroup(ctx context.Context, group model.Group) (model.Group, error) {
	saved, served, err := durableCall(ctx, t, "save_group", func(ctx context.Context, b Backend) (model.Group, error) {
		return b.SaveGroup(ctx, group)
	})
	if !served {
		return t.memory.SaveGroup(ctx, group)
	}
	if errors.Is(err, ErrDuplicate) {
		t.mirrorExistingGroup(ctx, group)
		return model.Group{}, err
	}
	if err != nil {
		return model.Group{}, err
	}
	return t.memory.putGroup(saved), nil
}

// mirrorExistingGroup copies a group the durable tier already holds into memory. When the
// durable copy cannot be read, the submitted group stands in until a later read refreshes it.
func (t *Tiered) mirrorExistingGroup(ctx context.Context, group model.Group) {
	existing, served, err := durableCall(ctx, t, "find_group", func(ctx context.Context, b Backend) (model.Group, error) {
		return b.FindGroup(ctx, group.ID)
	})
	if served && err == nil {
		t.memory.putGroup(existing)
		return
	}
	if _, err := t.memory.FindGroup(ctx, group.ID); errors.Is(err, ErrNotFound) {
		t.memory.putGroup(group)
	}
}

func (t *Tiered) FindGroup(ctx context.Context, id string) (model.Group, error) {
	group, served, err := durableCall(ctx, t, "find_group", func(ctx context.Context, b Backend) (model.Group, error) {
		return b.FindGroup(ctx, id)
	})
	if served && err == nil {
		return t.memory.putGroup(group), nil
	}
	return t.memory.FindGroup(ctx, id)
}

func (t *Tiered) ListGroups(ctx context.Context) ([]model.Group, error) {
	durable, served, err := durableCall(ctx, t, "list_groups", func(ctx context.Context, b Backend) ([]model.Group, error) {
		return b.ListGroups(ctx)
	})
	if served && err == nil {
		for i, g := range durable {
			durable[i] = t.memory.putGroup(g)
		}
	} else {
		durable = nil
	}

	memory, err := t.memory.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	return lo.UniqBy(append(durable, memory...), func(g model.Group) string { return g.ID }), nil
}

func (t *Tiered) AddGroupMember(ctx context.Context, groupID, userID string) (model.Group, error) {
	group, served, err := durableCall(ctx, t, "add_group_member", func(ctx context.Context, b Backend) (model.Group, error) {
		return b.AddGroupMember(ctx, groupID, userID)
	})
	if served && err == nil {
		return t.memory.putGroup(group), nil
	}
	// Groups created during an outage exist only in memory.
	return t.memory.AddGroupMember(ctx, groupID, userID)
}

func (t *Tiered) SaveMessage(ctx context.Context, message model.Message) (model.Message, error) {
	saved, served, err := durableCall(ctx, t, "save_message", func(ctx context.Context, b Backend) (model.Message, error) {
		return b.SaveMessage(ctx, message)
	})
	if !served {
		return t.memory.SaveMessage(ctx, message)
	}
	return saved, err
}

func (t *Tiered) ListMessages(ctx context.Context, query model.MessageQuery) ([]model.Message, error) {
	durable, served, err := durableCall(ctx, t, "list_messages", func(ctx context.Context, b Backend) ([]model.Message, error) {
		return b.ListMessages(ctx, query)
	})
	if !served || err != nil {
		durable = nil
	}

	memory, err := t.memory.ListMessages(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(durable) == 0 {
		return memory, nil
	}

	merged := lo.UniqBy(append(durable, memory...), func(m model.Message) string { return m.ID })
	slices.SortStableFunc(merged, func(a, b model.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return keepNewest(merged, query.Limit), nil
}
