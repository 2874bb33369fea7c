package main

import (
	"flag"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
)

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseAmount accepts plain integers and the 500e18 shorthand.
func parseAmount(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("amount required")
	}
	hex := strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X")
	if idx := strings.IndexAny(trimmed, "eE"); idx > 0 && !hex {
		base, ok := new(big.Int).SetString(trimmed[:idx], 10)
		if !ok {
			return "", fmt.Errorf("invalid amount %q", value)
		}
		exp, err := strconv.ParseUint(trimmed[idx+1:], 10, 8)
		if err != nil {
			return "", fmt.Errorf("invalid exponent in %q", value)
		}
		scale := new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(exp), nil)
		base.Mul(base, scale)
		if base.Sign() < 0 {
			return "", fmt.Errorf("amount must not be negative")
		}
		return base.String(), nil
	}
	parsed, ok := new(big.Int).SetString(trimmed, 0)
	if !ok || parsed.Sign() < 0 {
		return "", fmt.Errorf("invalid amount %q", value)
	}
	return parsed.String(), nil
}

func parseZones(value string) ([]uint64, error) {
	parts := strings.Split(value, ",")
	zones := make([]uint64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		zone, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid zone %q", part)
		}
		zones = append(zones, zone)
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("at least one zone required")
	}
	return zones, nil
}

func saleUsage() string {
	return strings.Join([]string{
		"Usage: landsale-cli sale <subcommand> [flags]",
		"  config",
		"  quote --buyer <addr>",
		"  cooldown --buyer <addr>",
		"  flag --zone <id> [--whitelist]",
		"  claimed --token-id <id>",
		"  mint --buyer <addr> --zone <id> --x <n> --y <n>",
		"  whitelist-mint --buyer <addr> --token-id <id> --zone <id> --x <n> --y <n>",
		"  set-price --caller <addr> --price <amount>",
		"  set-cooldown --caller <addr> --seconds <n>",
		"  set-state --caller <addr> --zones 1,2 --enabled=<bool> [--whitelist]",
		"  set-collaborator --caller <addr> --kind payment|registry|whitelist --address <addr>",
		"  transfer-authority --caller <addr> --to <addr>",
		"  list-mints [--buyer <addr>] [--kind public|whitelist] [--zone <id>] [--limit n] [--offset n]",
	}, "\n")
}

type command struct {
	method string
	auth   bool
	params map[string]interface{}
}

func runSaleCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" {
		fmt.Fprintln(stderr, saleUsage())
		return 1
	}
	cmd, err := buildSaleCommand(args[0], args[1:], stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return execute(cmd, stdout, stderr)
}

func execute(cmd *command, stdout, stderr io.Writer) int {
	var params interface{}
	if cmd.params != nil {
		params = cmd.params
	}
	result, err := rpcCall(cmd.method, params, cmd.auth)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	printResult(stdout, result)
	return 0
}

func buildSaleCommand(name string, args []string, stderr io.Writer) (*command, error) {
	fs := newFlagSet("sale "+name, stderr)
	var (
		buyer     = fs.String("buyer", "", "buyer address")
		caller    = fs.String("caller", "", "authority address issuing the change")
		tokenID   = fs.String("token-id", "", "whitelist token id")
		zone      = fs.Uint64("zone", 0, "zone id")
		x         = fs.Int64("x", 0, "parcel x coordinate")
		y         = fs.Int64("y", 0, "parcel y coordinate")
		price     = fs.String("price", "", "price per parcel (supports 500e18)")
		seconds   = fs.Uint64("seconds", 0, "cooldown in seconds")
		zones     = fs.String("zones", "", "comma separated zone ids")
		enabled   = fs.Bool("enabled", true, "flag value to apply")
		whitelist = fs.Bool("whitelist", false, "operate on the whitelist sale flags")
		kind      = fs.String("kind", "", "collaborator kind or mint kind filter")
		address   = fs.String("address", "", "collaborator address")
		to        = fs.String("to", "", "new authority address")
		limit     = fs.Int("limit", 0, "page size")
		offset    = fs.Int("offset", 0, "page offset")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch name {
	case "config":
		return &command{method: "landsale_config"}, nil
	case "quote":
		return &command{method: "landsale_quote", params: map[string]interface{}{"buyer": *buyer}}, nil
	case "cooldown":
		return &command{method: "landsale_cooldownStatus", params: map[string]interface{}{"buyer": *buyer}}, nil
	case "flag":
		method := "landsale_saleFlag"
		if *whitelist {
			method = "landsale_whitelistSaleFlag"
		}
		return &command{method: method, params: map[string]interface{}{"zone": *zone}}, nil
	case "claimed":
		return &command{method: "landsale_whitelistClaimed", params: map[string]interface{}{"tokenId": *tokenID}}, nil
	case "mint":
		return &command{method: "landsale_mintLand", auth: true, params: map[string]interface{}{
			"buyer": *buyer, "zone": *zone, "x": *x, "y": *y,
		}}, nil
	case "whitelist-mint":
		return &command{method: "landsale_whitelistMintLand", auth: true, params: map[string]interface{}{
			"buyer": *buyer, "tokenId": *tokenID, "zone": *zone, "x": *x, "y": *y,
		}}, nil
	case "set-price":
		amount, err := parseAmount(*price)
		if err != nil {
			return nil, err
		}
		return &command{method: "landsale_setPrice", auth: true, params: map[string]interface{}{
			"caller": *caller, "price": amount,
		}}, nil
	case "set-cooldown":
		return &command{method: "landsale_setCooldown", auth: true, params: map[string]interface{}{
			"caller": *caller, "seconds": *seconds,
		}}, nil
	case "set-state":
		ids, err := parseZones(*zones)
		if err != nil {
			return nil, err
		}
		method := "landsale_setSaleState"
		if *whitelist {
			method = "landsale_setWhitelistSaleState"
		}
		return &command{method: method, auth: true, params: map[string]interface{}{
			"caller": *caller, "zones": ids, "enabled": *enabled,
		}}, nil
	case "set-collaborator":
		methods := map[string]string{
			"payment":   "landsale_setPaymentToken",
			"registry":  "landsale_setLandRegistry",
			"whitelist": "landsale_setWhitelistToken",
		}
		method, ok := methods[*kind]
		if !ok {
			return nil, fmt.Errorf("--kind must be payment, registry or whitelist")
		}
		return &command{method: method, auth: true, params: map[string]interface{}{
			"caller": *caller, "address": *address,
		}}, nil
	case "transfer-authority":
		return &command{method: "landsale_transferAuthority", auth: true, params: map[string]interface{}{
			"caller": *caller, "address": *to,
		}}, nil
	case "list-mints":
		params := map[string]interface{}{}
		if *buyer != "" {
			params["buyer"] = *buyer
		}
		if *kind != "" {
			params["kind"] = *kind
		}
		if *zone != 0 {
			params["zone"] = *zone
		}
		if *limit != 0 {
			params["limit"] = *limit
		}
		if *offset != 0 {
			params["offset"] = *offset
		}
		return &command{method: "landsale_listMints", params: params}, nil
	default:
		return nil, fmt.Errorf("unknown sale subcommand %q\n%s", name, saleUsage())
	}
}
