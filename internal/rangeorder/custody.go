package rangeorder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Withdraw returns up to amount of the engine's free reference balance to custody
// and reports how much was sent.
func (m *Manager) Withdraw(ctx context.Context, caller common.Address, amount *big.Int) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireCustody(caller); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidAmount)
	}
	token := m.cfg.ReferenceToken
	bal, err := m.ledger.BalanceOf(ctx, token, m.cfg.Self)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	send := new(big.Int).Set(amount)
	if bal.Cmp(send) < 0 {
		send.Set(bal)
	}
	if send.Sign() == 0 {
		return send, nil
	}
	if err := m.ledger.Transfer(ctx, token, m.cfg.Self, m.custody.Address(), send); err != nil {
		return nil, fmt.Errorf("transfer to custody: %w", err)
	}
	m.logger.Info("withdrawn to custody",
		zap.String("requested", amount.String()),
		zap.String("sent", send.String()),
	)
	return send, nil
}

// RecoverERC20 sweeps the engine's free balance of any token to recipient.
// Liquidity escrowed in the pool is not part of the free balance.
func (m *Manager) RecoverERC20(ctx context.Context, caller, token, recipient common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.authorize(caller, RoleGuardian); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if err := m.ledger.Transfer(ctx, token, m.cfg.Self, recipient, amount); err != nil {
		return fmt.Errorf("recover %s: %w", token.Hex(), err)
	}
	m.logger.Warn("tokens recovered",
		zap.String("token", token.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount", amount.String()),
	)
	return nil
}
