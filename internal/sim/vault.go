package sim

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Vault is a custody account that funds the engine from its ledger balance.
type Vault struct {
	address common.Address
	ledger  *Ledger
}

func NewVault(address common.Address, ledger *Ledger) *Vault {
	return &Vault{address: address, ledger: ledger}
}

func (v *Vault) Address() common.Address { return v.address }

// Fund transfers amount of token from the vault to the engine.
func (v *Vault) Fund(ctx context.Context, token, to common.Address, amount *big.Int) error {
	return v.ledger.Transfer(ctx, token, v.address, to, amount)
}
