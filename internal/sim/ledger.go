package sim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger is an in-memory ERC20 balance sheet shared by every simulated account.
type Ledger struct {
	mu       sync.Mutex
	balances map[common.Address]map[common.Address]*big.Int
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[common.Address]map[common.Address]*big.Int)}
}

// BalanceOf returns owner's balance of token.
func (l *Ledger) BalanceOf(_ context.Context, token, owner common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(token, owner)), nil
}

// Transfer moves amount of token between accounts.
func (l *Ledger) Transfer(_ context.Context, token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.balanceLocked(token, from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), src, token.Hex(), amount)
	}
	src.Sub(src, amount)
	dst := l.balanceLocked(token, to)
	dst.Add(dst, amount)
	return nil
}

// Mint credits amount of token to an account out of thin air.
func (l *Ledger) Mint(token, to common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(token, to)
	bal.Add(bal, amount)
}

func (l *Ledger) balanceLocked(token, owner common.Address) *big.Int {
	byOwner, ok := l.balances[token]
	if !ok {
		byOwner = make(map[common.Address]*big.Int)
		l.balances[token] = byOwner
	}
	bal, ok := byOwner[owner]
	if !ok {
		bal = new(big.Int)
		byOwner[owner] = bal
	}
	return bal
}
