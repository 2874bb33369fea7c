package core

import (
	"fmt"
	"log/slog"

	"landsale/core/genesis"
	"landsale/native/land"
	"landsale/native/token"
)

// ApplyGenesis deploys the collaborators described by spec, bootstraps the
// sale and applies its initial configuration in a single transition. It is a
// no-op returning false when the sale already exists, so restarting a node
// with the same genesis is safe.
func (n *Node) ApplyGenesis(spec *genesis.Spec) (bool, error) {
	if spec == nil {
		return false, fmt.Errorf("core: genesis spec required")
	}
	if err := spec.Validate(); err != nil {
		return false, fmt.Errorf("core: invalid genesis: %w", err)
	}
	if spec.SaleIdentity() != n.SaleAddress() {
		return false, fmt.Errorf("%w: genesis %s, node %s", ErrGenesisMismatch,
			hexAddr(spec.SaleIdentity()), hexAddr(n.SaleAddress()))
	}
	applied := false
	err := n.transition("genesis", func() error {
		exists, err := n.sale.Bootstrapped()
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		applied = true
		return n.applyGenesis(spec)
	})
	if err != nil {
		return false, err
	}
	if applied {
		n.logger.Info("genesis applied",
			slog.String("sale", hexAddr(n.SaleAddress())),
			slog.String("authority", hexAddr(spec.AuthorityAddress())))
	}
	return applied, nil
}

func (n *Node) applyGenesis(spec *genesis.Spec) error {
	authority := spec.AuthorityAddress()
	sale := n.SaleAddress()

	if _, err := n.sale.Bootstrap(authority); err != nil {
		return err
	}

	if ts := spec.PaymentToken; ts != nil {
		meta := &token.Metadata{
			Address:  ts.ContractAddress(),
			Symbol:   ts.Symbol,
			Name:     ts.Name,
			Decimals: ts.Decimals,
			Owner:    ts.OwnerAddress(),
		}
		if _, err := n.tokens.Register(meta); err != nil {
			return fmt.Errorf("genesis payment token: %w", err)
		}
		for _, alloc := range ts.Allocations() {
			if err := n.tokens.Mint(meta.Address, meta.Owner, alloc.Account, alloc.Amount); err != nil {
				return fmt.Errorf("genesis alloc %s: %w", hexAddr(alloc.Account), err)
			}
		}
		if err := n.sale.SetPaymentToken(authority, meta.Address); err != nil {
			return err
		}
	}

	if rs := spec.LandRegistry; rs != nil {
		registry := rs.ContractAddress()
		admin := rs.AdminAddress()
		if _, err := n.registries.Deploy(registry, rs.Name, admin); err != nil {
			return fmt.Errorf("genesis land registry: %w", err)
		}
		for _, name := range rs.Zones {
			if _, err := n.registries.NewZone(registry, admin, name); err != nil {
				return fmt.Errorf("genesis zone %q: %w", name, err)
			}
		}
		if spec.GrantMinter {
			if err := n.registries.GrantRole(registry, admin, land.MinterRole, sale); err != nil {
				return fmt.Errorf("genesis minter grant: %w", err)
			}
		}
		if err := n.sale.SetLandRegistry(authority, registry); err != nil {
			return err
		}
	}

	if cs := spec.WhitelistToken; cs != nil {
		collection := cs.ContractAddress()
		owner := cs.OwnerAddress()
		if _, err := n.collections.Deploy(collection, cs.Name, owner); err != nil {
			return fmt.Errorf("genesis whitelist token: %w", err)
		}
		for _, grant := range cs.Grants() {
			if err := n.collections.Mint(collection, owner, grant.Owner, grant.ID); err != nil {
				return fmt.Errorf("genesis whitelist token %s: %w", grant.ID, err)
			}
		}
		if err := n.sale.SetWhitelistToken(authority, collection); err != nil {
			return err
		}
	}

	if price := spec.InitialPrice(); price.Sign() > 0 {
		if err := n.sale.SetPrice(authority, price); err != nil {
			return err
		}
	}
	if spec.CooldownSeconds > 0 {
		if err := n.sale.SetCooldown(authority, spec.CooldownSeconds); err != nil {
			return err
		}
	}
	if err := n.sale.SetSaleState(authority, spec.SaleZones, true); err != nil {
		return err
	}
	return n.sale.SetWhitelistSaleState(authority, spec.WhitelistZones, true)
}
