package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"landsale/native/land"
	"landsale/native/token"
)

type tokenMintParams struct {
	Contract string `json:"contract"`
	Caller   string `json:"caller"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
}

type tokenApproveParams struct {
	Contract string `json:"contract"`
	Owner    string `json:"owner"`
	Spender  string `json:"spender"`
	Amount   string `json:"amount"`
}

type tokenTransferParams struct {
	Contract string `json:"contract"`
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
}

type tokenQueryParams struct {
	Contract string `json:"contract"`
	Owner    string `json:"owner,omitempty"`
	Spender  string `json:"spender,omitempty"`
}

type tokenView struct {
	Address     string `json:"address"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    uint8  `json:"decimals"`
	Owner       string `json:"owner"`
	TotalSupply string `json:"totalSupply"`
}

func (s *Server) handleTokenMint(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params tokenMintParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addrs, err := parseAddresses(map[string]string{
		"contract": params.Contract, "caller": params.Caller, "to": params.To,
	})
	if err != nil {
		return nil, err
	}
	amount, err := parseUint256("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.TokenMint(addrs["contract"], addrs["caller"], addrs["to"], amount); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleTokenApprove(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params tokenApproveParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addrs, err := parseAddresses(map[string]string{
		"contract": params.Contract, "owner": params.Owner, "spender": params.Spender,
	})
	if err != nil {
		return nil, err
	}
	amount, err := parseUint256("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.TokenApprove(addrs["contract"], addrs["owner"], addrs["spender"], amount); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleTokenTransfer(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params tokenTransferParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addrs, err := parseAddresses(map[string]string{
		"contract": params.Contract, "from": params.From, "to": params.To,
	})
	if err != nil {
		return nil, err
	}
	amount, err := parseUint256("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.TokenTransfer(addrs["contract"], addrs["from"], addrs["to"], amount); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleTokenMetadata(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params tokenQueryParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	contract, err := parseAddress("contract", params.Contract)
	if err != nil {
		return nil, err
	}
	meta, err := s.node.TokenMetadata(contract)
	if err != nil {
		return nil, err
	}
	return newTokenView(meta), nil
}

func newTokenView(meta *token.Metadata) tokenView {
	return tokenView{
		Address:     formatAddress(meta.Address),
		Symbol:      meta.Symbol,
		Name:        meta.Name,
		Decimals:    meta.Decimals,
		Owner:       formatAddress(meta.Owner),
		TotalSupply: formatAmount(meta.TotalSupply),
	}
}

func (s *Server) handleTokenBalance(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params tokenQueryParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addrs, err := parseAddresses(map[string]string{"contract": params.Contract, "owner": params.Owner})
	if err != nil {
		return nil, err
	}
	balance, err := s.node.TokenBalance(addrs["contract"], addrs["owner"])
	if err != nil {
		return nil, err
	}
	return map[string]string{"owner": formatAddress(addrs["owner"]), "balance": formatAmount(balance)}, nil
}

func (s *Server) handleTokenAllowance(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params tokenQueryParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addrs, err := parseAddresses(map[string]string{
		"contract": params.Contract, "owner": params.Owner, "spender": params.Spender,
	})
	if err != nil {
		return nil, err
	}
	allowance, err := s.node.TokenAllowance(addrs["contract"], addrs["owner"], addrs["spender"])
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"owner":     formatAddress(addrs["owner"]),
		"spender":   formatAddress(addrs["spender"]),
		"allowance": formatAmount(allowance),
	}, nil
}

type landZoneParams struct {
	Registry string `json:"registry"`
	Caller   string `json:"caller,omitempty"`
	Name     string `json:"name,omitempty"`
	Zone     uint64 `json:"zone,omitempty"`
}

type landRoleParams struct {
	Registry string `json:"registry"`
	Caller   string `json:"caller,omitempty"`
	Role     string `json:"role"`
	Account  string `json:"account"`
}

type landParcelParams struct {
	Registry string `json:"registry"`
	ID       string `json:"id,omitempty"`
	Zone     uint64 `json:"zone,omitempty"`
	X        int64  `json:"x,omitempty"`
	Y        int64  `json:"y,omitempty"`
}

type parcelView struct {
	ID       string `json:"id"`
	Zone     uint64 `json:"zone"`
	X        int64  `json:"x"`
	Y        int64  `json:"y"`
	Owner    string `json:"owner"`
	MintedBy string `json:"mintedBy"`
}

func newParcelView(p *land.Parcel) parcelView {
	return parcelView{
		ID:       formatAmount(p.ID),
		Zone:     p.Zone,
		X:        p.X,
		Y:        p.Y,
		Owner:    formatAddress(p.Owner),
		MintedBy: formatAddress(p.MintedBy),
	}
}

func (s *Server) handleLandNewZone(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params landZoneParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addrs, err := parseAddresses(map[string]string{"registry": params.Registry, "caller": params.Caller})
	if err != nil {
		return nil, err
	}
	zone, err := s.node.LandNewZone(addrs["registry"], addrs["caller"], params.Name)
	if err != nil {
		return nil, err
	}
	return zone, nil
}

func (s *Server) handleLandZone(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params landZoneParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	registry, err := parseAddress("registry", params.Registry)
	if err != nil {
		return nil, err
	}
	zone, err := s.node.LandZone(registry, params.Zone)
	if err != nil {
		return nil, err
	}
	return zone, nil
}

func (s *Server) handleLandSetRole(grant bool) handlerFunc {
	return func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var params landRoleParams
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
		addrs, err := parseAddresses(map[string]string{
			"registry": params.Registry, "caller": params.Caller, "account": params.Account,
		})
		if err != nil {
			return nil, err
		}
		role, err := parseRole(params.Role)
		if err != nil {
			return nil, err
		}
		if grant {
			err = s.node.LandGrantRole(addrs["registry"], addrs["caller"], role, addrs["account"])
		} else {
			err = s.node.LandRevokeRole(addrs["registry"], addrs["caller"], role, addrs["account"])
		}
		if err != nil {
			return nil, err
		}
		return okResult{OK: true}, nil
	}
}

func (s *Server) handleLandHasRole(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params landRoleParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addrs, err := parseAddresses(map[string]string{"registry": params.Registry, "account": params.Account})
	if err != nil {
		return nil, err
	}
	role, err := parseRole(params.Role)
	if err != nil {
		return nil, err
	}
	has, err := s.node.LandHasRole(addrs["registry"], role, addrs["account"])
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"role": role.Hex(), "account": formatAddress(addrs["account"]), "hasRole": has}, nil
}

func parseRole(value string) (land.Role, error) {
	role, err := land.ParseRole(value)
	if err != nil {
		return role, invalidParams(fmt.Sprintf("role: %v", err))
	}
	return role, nil
}

func (s *Server) handleLandParcel(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params landParcelParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	registry, err := parseAddress("registry", params.Registry)
	if err != nil {
		return nil, err
	}
	id, err := parseUint256("id", params.ID)
	if err != nil {
		return nil, err
	}
	parcel, err := s.node.LandParcel(registry, id)
	if err != nil {
		return nil, err
	}
	return newParcelView(parcel), nil
}

func (s *Server) handleLandParcelAt(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params landParcelParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	registry, err := parseAddress("registry", params.Registry)
	if err != nil {
		return nil, err
	}
	parcel, err := s.node.LandParcelAt(registry, params.Zone, params.X, params.Y)
	if err != nil {
		return nil, err
	}
	return newParcelView(parcel), nil
}

type landOwnerParams struct {
	Registry string `json:"registry"`
	Owner    string `json:"owner"`
}

func (s *Server) handleLandParcelsOf(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params landOwnerParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	registry, err := parseAddress("registry", params.Registry)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	parcels, err := s.node.LandParcelsOf(registry, owner)
	if err != nil {
		return nil, err
	}
	views := make([]parcelView, 0, len(parcels))
	for _, parcel := range parcels {
		views = append(views, newParcelView(parcel))
	}
	return views, nil
}

type nftParams struct {
	Collection string `json:"collection"`
	Caller     string `json:"caller,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	TokenID    string `json:"tokenId"`
}

func (s *Server) handleNFTMint(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params nftParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addrs, err := parseAddresses(map[string]string{
		"collection": params.Collection, "caller": params.Caller, "to": params.To,
	})
	if err != nil {
		return nil, err
	}
	id, err := parseUint256("tokenId", params.TokenID)
	if err != nil {
		return nil, err
	}
	if err := s.node.NFTMint(addrs["collection"], addrs["caller"], addrs["to"], id); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleNFTTransfer(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params nftParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addrs, err := parseAddresses(map[string]string{
		"collection": params.Collection, "caller": params.Caller, "from": params.From, "to": params.To,
	})
	if err != nil {
		return nil, err
	}
	id, err := parseUint256("tokenId", params.TokenID)
	if err != nil {
		return nil, err
	}
	if err := s.node.NFTTransfer(addrs["collection"], addrs["caller"], addrs["from"], addrs["to"], id); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleNFTOwnerOf(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params nftParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	collection, err := parseAddress("collection", params.Collection)
	if err != nil {
		return nil, err
	}
	id, err := parseUint256("tokenId", params.TokenID)
	if err != nil {
		return nil, err
	}
	owner, err := s.node.NFTOwnerOf(collection, id)
	if err != nil {
		return nil, err
	}
	return map[string]string{"tokenId": id.String(), "owner": formatAddress(owner)}, nil
}

// parseAddresses parses every named field, reporting the first failure in
// field-name order so error messages are stable.
func parseAddresses(fields map[string]string) (map[string][20]byte, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(map[string][20]byte, len(fields))
	for _, name := range names {
		addr, err := parseAddress(name, fields[name])
		if err != nil {
			return nil, err
		}
		out[name] = addr
	}
	return out, nil
}
