package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ammCore/internal/amm"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrBalanceOverflow     = errors.New("ledger: balance overflow")
	ErrShareAsset          = errors.New("ledger: share assets can only be minted")
	ErrUnknownMovement     = errors.New("ledger: unknown movement kind")
)

type account struct {
	holder common.Address
	asset  common.Address
}

// Memory is an in-process custody ledger. Balances are keyed by holder and
// asset; assets that have been minted through a settlement carry a tracked
// supply.
type Memory struct {
	mu       sync.Mutex
	balances map[account]uint64
	supply   map[common.Address]uint64
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[account]uint64),
		supply:   make(map[common.Address]uint64),
	}
}

// Reserves returns the balances held by the pool vaults.
func (m *Memory) Reserves(ctx context.Context, pool amm.PoolState) (amm.Reserves, error) {
	if err := ctx.Err(); err != nil {
		return amm.Reserves{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return amm.Reserves{
		X: m.balances[account{holder: pool.VaultX, asset: pool.MintX}],
		Y: m.balances[account{holder: pool.VaultY, asset: pool.MintY}],
	}, nil
}

// ShareSupply returns the issued amount of the pool's share asset.
func (m *Memory) ShareSupply(ctx context.Context, pool amm.PoolState) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supply[pool.LPMint], nil
}

func (m *Memory) BalanceOf(holder, asset common.Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account{holder: holder, asset: asset}]
}

// Holds reports whether any account holds a balance of asset.
func (m *Memory) Holds(asset common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.balances {
		if key.asset == asset {
			return true
		}
	}
	return false
}

// Credit adds funds to holder from outside the ledger.
func (m *Memory) Credit(holder, asset common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.supply[asset]; ok {
		return fmt.Errorf("%w: %s", ErrShareAsset, asset.Hex())
	}
	key := account{holder: holder, asset: asset}
	next := m.balances[key] + amount
	if next < amount {
		return fmt.Errorf("%w: %s/%s", ErrBalanceOverflow, holder.Hex(), asset.Hex())
	}
	m.balances[key] = next
	return nil
}

// Settle applies every movement of s or none of them.
func (m *Memory) Settle(ctx context.Context, s amm.Settlement) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &staged{
		parent:   m,
		balances: make(map[account]uint64),
		supply:   make(map[common.Address]uint64),
	}
	for i, mv := range s.Movements {
		if err := tx.apply(mv); err != nil {
			return fmt.Errorf("movement %d (%s): %w", i, mv.Kind, err)
		}
	}

	for key, amount := range tx.balances {
		if amount == 0 {
			delete(m.balances, key)
			continue
		}
		m.balances[key] = amount
	}
	for asset, amount := range tx.supply {
		m.supply[asset] = amount
	}
	return nil
}

type staged struct {
	parent   *Memory
	balances map[account]uint64
	supply   map[common.Address]uint64
}

func (t *staged) balance(key account) uint64 {
	if v, ok := t.balances[key]; ok {
		return v
	}
	return t.parent.balances[key]
}

func (t *staged) issued(asset common.Address) uint64 {
	if v, ok := t.supply[asset]; ok {
		return v
	}
	return t.parent.supply[asset]
}

func (t *staged) debit(key account, amount uint64) error {
	have := t.balance(key)
	if have < amount {
		return fmt.Errorf("%w: %s holds %d of %s, needs %d",
			ErrInsufficientBalance, key.holder.Hex(), have, key.asset.Hex(), amount)
	}
	t.balances[key] = have - amount
	return nil
}

func (t *staged) credit(key account, amount uint64) error {
	have := t.balance(key)
	if have+amount < have {
		return fmt.Errorf("%w: %s/%s", ErrBalanceOverflow, key.holder.Hex(), key.asset.Hex())
	}
	t.balances[key] = have + amount
	return nil
}

func (t *staged) apply(mv amm.Movement) error {
	switch mv.Kind {
	case amm.MovementTransfer:
		if err := t.debit(account{holder: mv.From, asset: mv.Asset}, mv.Amount); err != nil {
			return err
		}
		return t.credit(account{holder: mv.To, asset: mv.Asset}, mv.Amount)
	case amm.MovementMint:
		issued := t.issued(mv.Asset)
		if issued+mv.Amount < issued {
			return fmt.Errorf("%w: supply of %s", ErrBalanceOverflow, mv.Asset.Hex())
		}
		t.supply[mv.Asset] = issued + mv.Amount
		return t.credit(account{holder: mv.To, asset: mv.Asset}, mv.Amount)
	case amm.MovementBurn:
		if err := t.debit(account{holder: mv.From, asset: mv.Asset}, mv.Amount); err != nil {
			return err
		}
		issued := t.issued(mv.Asset)
		if issued < mv.Amount {
			return fmt.Errorf("%w: supply of %s", ErrInsufficientBalance, mv.Asset.Hex())
		}
		t.supply[mv.Asset] = issued - mv.Amount
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMovement, mv.Kind)
	}
}

// Balance is one persisted holder/asset entry.
type Balance struct {
	Holder common.Address `json:"holder"`
	Asset  common.Address `json:"asset"`
	Amount uint64         `json:"amount"`
}

// Supply is the issued amount of a share asset.
type Supply struct {
	Asset  common.Address `json:"asset"`
	Amount uint64         `json:"amount"`
}

// State is a point-in-time copy of a Memory ledger, ordered for stable output.
type State struct {
	Balances []Balance `json:"balances"`
	Supplies []Supply  `json:"supplies"`
}

func (m *Memory) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := State{
		Balances: make([]Balance, 0, len(m.balances)),
		Supplies: make([]Supply, 0, len(m.supply)),
	}
	for key, amount := range m.balances {
		st.Balances = append(st.Balances, Balance{Holder: key.holder, Asset: key.asset, Amount: amount})
	}
	for asset, amount := range m.supply {
		st.Supplies = append(st.Supplies, Supply{Asset: asset, Amount: amount})
	}
	sort.Slice(st.Balances, func(i, j int) bool {
		if c := bytes.Compare(st.Balances[i].Holder[:], st.Balances[j].Holder[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(st.Balances[i].Asset[:], st.Balances[j].Asset[:]) < 0
	})
	sort.Slice(st.Supplies, func(i, j int) bool {
		return bytes.Compare(st.Supplies[i].Asset[:], st.Supplies[j].Asset[:]) < 0
	})
	return st
}

// Restore rebuilds a ledger from a snapshot. Balances of a share asset must
// add up to its recorded supply.
func Restore(st State) (*Memory, error) {
	m := NewMemory()
	for _, s := range st.Supplies {
		m.supply[s.Asset] = s.Amount
	}
	held := make(map[common.Address]uint64)
	for _, b := range st.Balances {
		key := account{holder: b.Holder, asset: b.Asset}
		if _, dup := m.balances[key]; dup {
			return nil, fmt.Errorf("restore ledger: duplicate balance %s/%s", b.Holder.Hex(), b.Asset.Hex())
		}
		if b.Amount == 0 {
			continue
		}
		m.balances[key] = b.Amount
		if _, ok := m.supply[b.Asset]; ok {
			held[b.Asset] += b.Amount
		}
	}
	for asset, total := range m.supply {
		if held[asset] != total {
			return nil, fmt.Errorf("restore ledger: %s balances %d, supply %d", asset.Hex(), held[asset], total)
		}
	}
	return m, nil
}
