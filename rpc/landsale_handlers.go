package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"landsale/indexer"
	"landsale/native/landsale"
	landsaleotel "landsale/observability/otel"
)

type okResult struct {
	OK bool `json:"ok"`
}

type configView struct {
	Authority       string `json:"authority"`
	Price           string `json:"price"`
	CooldownSeconds uint64 `json:"cooldownSeconds"`
	PaymentToken    string `json:"paymentToken,omitempty"`
	LandRegistry    string `json:"landRegistry,omitempty"`
	WhitelistToken  string `json:"whitelistToken,omitempty"`
}

func optionalAddress(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return formatAddress(addr)
}

func newConfigView(cfg *landsale.Config) configView {
	return configView{
		Authority:       formatAddress(cfg.Authority),
		Price:           formatAmount(cfg.Price),
		CooldownSeconds: cfg.CooldownSeconds,
		PaymentToken:    optionalAddress(cfg.PaymentToken),
		LandRegistry:    optionalAddress(cfg.LandRegistry),
		WhitelistToken:  optionalAddress(cfg.WhitelistToken),
	}
}

type receiptView struct {
	Kind             string `json:"kind"`
	ParcelID         string `json:"parcelId"`
	Zone             uint64 `json:"zone"`
	X                int64  `json:"x"`
	Y                int64  `json:"y"`
	Buyer            string `json:"buyer"`
	Payee            string `json:"payee"`
	Price            string `json:"price"`
	WhitelistTokenID string `json:"whitelistTokenId,omitempty"`
	MintedAt         int64  `json:"mintedAt"`
}

func newReceiptView(r *landsale.MintReceipt) receiptView {
	view := receiptView{
		Kind:     string(r.Kind),
		ParcelID: formatAmount(r.ParcelID),
		Zone:     r.Zone,
		X:        r.X,
		Y:        r.Y,
		Buyer:    formatAddress(r.Buyer),
		Payee:    formatAddress(r.Payee),
		Price:    formatAmount(r.Price),
		MintedAt: r.MintedAt,
	}
	if r.WhitelistTokenID != nil {
		view.WhitelistTokenID = r.WhitelistTokenID.String()
	}
	return view
}

type cooldownView struct {
	Buyer           string `json:"buyer"`
	HasPurchased    bool   `json:"hasPurchased"`
	LastPurchase    int64  `json:"lastPurchase"`
	CooldownSeconds uint64 `json:"cooldownSeconds"`
	NextEligible    int64  `json:"nextEligible"`
	Eligible        bool   `json:"eligible"`
}

func newCooldownView(c *landsale.CooldownStatus) cooldownView {
	return cooldownView{
		Buyer:           formatAddress(c.Buyer),
		HasPurchased:    c.HasPurchased,
		LastPurchase:    c.LastPurchase,
		CooldownSeconds: c.CooldownSeconds,
		NextEligible:    c.NextEligible,
		Eligible:        c.Eligible,
	}
}

type quoteView struct {
	Buyer     string       `json:"buyer"`
	Price     string       `json:"price"`
	Allowance string       `json:"allowance"`
	Funded    bool         `json:"funded"`
	Cooldown  cooldownView `json:"cooldown"`
}

type setPriceParams struct {
	Caller string `json:"caller"`
	Price  string `json:"price"`
}

type setCooldownParams struct {
	Caller  string `json:"caller"`
	Seconds uint64 `json:"seconds"`
}

type setAddressParams struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

type setZonesParams struct {
	Caller  string   `json:"caller"`
	Zones   []uint64 `json:"zones"`
	Enabled bool     `json:"enabled"`
}

type mintLandParams struct {
	Buyer string `json:"buyer"`
	Zone  uint64 `json:"zone"`
	X     int64  `json:"x"`
	Y     int64  `json:"y"`
}

type whitelistMintParams struct {
	Buyer   string `json:"buyer"`
	TokenID string `json:"tokenId"`
	Zone    uint64 `json:"zone"`
	X       int64  `json:"x"`
	Y       int64  `json:"y"`
}

type zoneParams struct {
	Zone uint64 `json:"zone"`
}

type tokenIDParams struct {
	TokenID string `json:"tokenId"`
}

type buyerParams struct {
	Buyer string `json:"buyer"`
}

type listMintsParams struct {
	Buyer  string `json:"buyer"`
	Kind   string `json:"kind"`
	Zone   uint64 `json:"zone"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func (s *Server) routes() map[string]method {
	admin := func(h handlerFunc) method { return method{handler: h, auth: true} }
	mint := func(h handlerFunc) method { return method{handler: h, auth: true, limited: true} }
	public := func(h handlerFunc) method { return method{handler: h} }

	return map[string]method{
		"landsale_setPrice":              admin(s.handleSetPrice),
		"landsale_setCooldown":           admin(s.handleSetCooldown),
		"landsale_setPaymentToken":       admin(s.handleSetCollaborator(s.node.LandSaleSetPaymentToken)),
		"landsale_setLandRegistry":       admin(s.handleSetCollaborator(s.node.LandSaleSetLandRegistry)),
		"landsale_setWhitelistToken":     admin(s.handleSetCollaborator(s.node.LandSaleSetWhitelistToken)),
		"landsale_setSaleState":          admin(s.handleSetZones(s.node.LandSaleSetSaleState)),
		"landsale_setWhitelistSaleState": admin(s.handleSetZones(s.node.LandSaleSetWhitelistSaleState)),
		"landsale_transferAuthority":     admin(s.handleTransferAuthority),
		"landsale_mintLand":              mint(s.handleMintLand),
		"landsale_whitelistMintLand":     mint(s.handleWhitelistMintLand),
		"landsale_config":                public(s.handleConfig),
		"landsale_saleFlag":              public(s.handleSaleFlag),
		"landsale_whitelistSaleFlag":     public(s.handleWhitelistSaleFlag),
		"landsale_whitelistClaimed":      public(s.handleWhitelistClaimed),
		"landsale_cooldownStatus":        public(s.handleCooldownStatus),
		"landsale_quote":                 public(s.handleQuote),
		"landsale_listMints":             public(s.handleListMints),

		"token_mint":      admin(s.handleTokenMint),
		"token_approve":   admin(s.handleTokenApprove),
		"token_transfer":  admin(s.handleTokenTransfer),
		"token_metadata":  public(s.handleTokenMetadata),
		"token_balance":   public(s.handleTokenBalance),
		"token_allowance": public(s.handleTokenAllowance),

		"land_newZone":    admin(s.handleLandNewZone),
		"land_grantRole":  admin(s.handleLandSetRole(true)),
		"land_revokeRole": admin(s.handleLandSetRole(false)),
		"land_hasRole":    public(s.handleLandHasRole),
		"land_zone":       public(s.handleLandZone),
		"land_parcel":     public(s.handleLandParcel),
		"land_parcelAt":   public(s.handleLandParcelAt),
		"land_parcelsOf":  public(s.handleLandParcelsOf),

		"nft_mint":     admin(s.handleNFTMint),
		"nft_transfer": admin(s.handleNFTTransfer),
		"nft_ownerOf":  public(s.handleNFTOwnerOf),
	}
}

func (s *Server) handleSetPrice(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params setPriceParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		return nil, err
	}
	price, err := parseUint256("price", params.Price)
	if err != nil {
		return nil, err
	}
	if err := s.node.LandSaleSetPrice(caller, price); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleSetCooldown(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params setCooldownParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		return nil, err
	}
	if err := s.node.LandSaleSetCooldown(caller, params.Seconds); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleSetCollaborator(set func(caller, addr [20]byte) error) handlerFunc {
	return func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var params setAddressParams
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
		caller, err := parseAddress("caller", params.Caller)
		if err != nil {
			return nil, err
		}
		addr, err := parseAddress("address", params.Address)
		if err != nil {
			return nil, err
		}
		if err := set(caller, addr); err != nil {
			return nil, err
		}
		return okResult{OK: true}, nil
	}
}

func (s *Server) handleSetZones(set func(caller [20]byte, zones []uint64, enabled bool) error) handlerFunc {
	return func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var params setZonesParams
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
		caller, err := parseAddress("caller", params.Caller)
		if err != nil {
			return nil, err
		}
		if len(params.Zones) == 0 {
			return nil, invalidParams("zones required")
		}
		if len(params.Zones) > landsale.MaxZoneBatch {
			return nil, invalidParams("too many zones")
		}
		if err := set(caller, params.Zones, params.Enabled); err != nil {
			return nil, err
		}
		return okResult{OK: true}, nil
	}
}

func (s *Server) handleTransferAuthority(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params setAddressParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		return nil, err
	}
	next, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	if err := s.node.LandSaleTransferAuthority(caller, next); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleMintLand(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params mintLandParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	buyer, err := parseAddress("buyer", params.Buyer)
	if err != nil {
		return nil, err
	}
	_, span := landsaleotel.StartSpan(ctx, "landsale.mintLand", map[string]string{
		"landsale.buyer": formatAddress(buyer),
		"landsale.zone":  strconv.FormatUint(params.Zone, 10),
	})
	defer span.End()
	receipt, err := s.node.LandSaleMintLand(params.Zone, params.X, params.Y, buyer)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return newReceiptView(receipt), nil
}

func (s *Server) handleWhitelistMintLand(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params whitelistMintParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	buyer, err := parseAddress("buyer", params.Buyer)
	if err != nil {
		return nil, err
	}
	tokenID, err := parseUint256("tokenId", params.TokenID)
	if err != nil {
		return nil, err
	}
	_, span := landsaleotel.StartSpan(ctx, "landsale.whitelistMintLand", map[string]string{
		"landsale.buyer":   formatAddress(buyer),
		"landsale.zone":    strconv.FormatUint(params.Zone, 10),
		"landsale.tokenId": tokenID.String(),
	})
	defer span.End()
	receipt, err := s.node.LandSaleWhitelistMintLand(tokenID, params.Zone, params.X, params.Y, buyer)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return newReceiptView(receipt), nil
}

func (s *Server) handleConfig(_ context.Context, _ json.RawMessage) (interface{}, error) {
	cfg, err := s.node.LandSaleConfig()
	if err != nil {
		return nil, err
	}
	return newConfigView(cfg), nil
}

func (s *Server) handleSaleFlag(_ context.Context, raw json.RawMessage) (interface{}, error) {
	return s.zoneFlag(raw, s.node.LandSaleZoneSaleEnabled)
}

func (s *Server) handleWhitelistSaleFlag(_ context.Context, raw json.RawMessage) (interface{}, error) {
	return s.zoneFlag(raw, s.node.LandSaleZoneWhitelistEnabled)
}

func (s *Server) zoneFlag(raw json.RawMessage, read func(uint64) (bool, error)) (interface{}, error) {
	var params zoneParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	enabled, err := read(params.Zone)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"zone": params.Zone, "enabled": enabled}, nil
}

func (s *Server) handleWhitelistClaimed(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var params tokenIDParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	tokenID, err := parseUint256("tokenId", params.TokenID)
	if err != nil {
		return nil, err
	}
	claimed, err := s.node.LandSaleWhitelistClaimed(tokenID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"tokenId": tokenID.String(), "claimed": claimed}, nil
}

func (s *Server) handleCooldownStatus(_ context.Context, raw json.RawMessage) (interface{}, error) {
	buyer, err := s.buyerParam(raw)
	if err != nil {
		return nil, err
	}
	status, err := s.node.LandSaleCooldownStatus(buyer)
	if err != nil {
		return nil, err
	}
	return newCooldownView(status), nil
}

func (s *Server) handleQuote(_ context.Context, raw json.RawMessage) (interface{}, error) {
	buyer, err := s.buyerParam(raw)
	if err != nil {
		return nil, err
	}
	quote, err := s.node.LandSaleQuote(buyer)
	if err != nil {
		return nil, err
	}
	return quoteView{
		Buyer:     formatAddress(quote.Buyer),
		Price:     formatAmount(quote.Price),
		Allowance: formatAmount(quote.Allowance),
		Funded:    quote.Funded,
		Cooldown:  newCooldownView(&quote.Cooldown),
	}, nil
}

func (s *Server) buyerParam(raw json.RawMessage) ([20]byte, error) {
	var params buyerParams
	if err := decodeParams(raw, &params); err != nil {
		return [20]byte{}, err
	}
	return parseAddress("buyer", params.Buyer)
}

func (s *Server) handleListMints(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if s.mints == nil {
		return nil, &RPCError{Code: codeServerError, Message: "mint index disabled"}
	}
	var params listMintsParams
	if hasParams(raw) {
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
	}
	filter := indexer.MintFilter{
		Kind:   strings.TrimSpace(params.Kind),
		Zone:   params.Zone,
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	if filter.Kind != "" && filter.Kind != string(landsale.MintKindPublic) && filter.Kind != string(landsale.MintKindWhitelist) {
		return nil, invalidParams("kind must be public or whitelist")
	}
	if params.Buyer != "" {
		buyer, err := parseAddress("buyer", params.Buyer)
		if err != nil {
			return nil, err
		}
		filter.Buyer = hexAddress(buyer)
	}
	records, err := s.mints.ListMints(ctx, filter)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"mints": records}, nil
}

func hexAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
