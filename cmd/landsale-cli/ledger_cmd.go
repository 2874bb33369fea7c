package main

import (
	"fmt"
	"io"
	"strings"
)

func tokenUsage() string {
	return strings.Join([]string{
		"Usage: landsale-cli token <subcommand> --contract <addr> [flags]",
		"  metadata",
		"  balance --owner <addr>",
		"  allowance --owner <addr> --spender <addr>",
		"  approve --owner <addr> --spender <addr> --amount <amount>",
		"  transfer --from <addr> --to <addr> --amount <amount>",
		"  mint --caller <addr> --to <addr> --amount <amount>",
	}, "\n")
}

func runTokenCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" {
		fmt.Fprintln(stderr, tokenUsage())
		return 1
	}
	fs := newFlagSet("token "+args[0], stderr)
	var (
		contract = fs.String("contract", "", "token contract address")
		owner    = fs.String("owner", "", "owner address")
		spender  = fs.String("spender", "", "spender address")
		from     = fs.String("from", "", "sender address")
		to       = fs.String("to", "", "recipient address")
		caller   = fs.String("caller", "", "token owner issuing the mint")
		amount   = fs.String("amount", "", "amount in base units (supports 500e18)")
	)
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	var cmd *command
	switch args[0] {
	case "metadata":
		cmd = &command{method: "token_metadata", params: map[string]interface{}{"contract": *contract}}
	case "balance":
		cmd = &command{method: "token_balance", params: map[string]interface{}{"contract": *contract, "owner": *owner}}
	case "allowance":
		cmd = &command{method: "token_allowance", params: map[string]interface{}{
			"contract": *contract, "owner": *owner, "spender": *spender,
		}}
	case "approve", "transfer", "mint":
		value, err := parseAmount(*amount)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		params := map[string]interface{}{"contract": *contract, "amount": value}
		switch args[0] {
		case "approve":
			params["owner"], params["spender"] = *owner, *spender
		case "transfer":
			params["from"], params["to"] = *from, *to
		case "mint":
			params["caller"], params["to"] = *caller, *to
		}
		cmd = &command{method: "token_" + args[0], auth: true, params: params}
	default:
		fmt.Fprintf(stderr, "Unknown token subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, tokenUsage())
		return 1
	}
	return execute(cmd, stdout, stderr)
}

func landUsage() string {
	return strings.Join([]string{
		"Usage: landsale-cli land <subcommand> --registry <addr> [flags]",
		"  zone --zone <id>",
		"  new-zone --caller <addr> --name <name>",
		"  parcel --id <id>",
		"  parcel-at --zone <id> --x <n> --y <n>",
		"  parcels --owner <addr>",
		"  has-role --role MINTER_ROLE --account <addr>",
		"  grant-role --caller <addr> --role MINTER_ROLE --account <addr>",
		"  revoke-role --caller <addr> --role MINTER_ROLE --account <addr>",
	}, "\n")
}

func runLandCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" {
		fmt.Fprintln(stderr, landUsage())
		return 1
	}
	fs := newFlagSet("land "+args[0], stderr)
	var (
		registry = fs.String("registry", "", "land registry address")
		caller   = fs.String("caller", "", "registry admin issuing the change")
		name     = fs.String("name", "", "zone name")
		zone     = fs.Uint64("zone", 0, "zone id")
		id       = fs.String("id", "", "parcel id")
		x        = fs.Int64("x", 0, "parcel x coordinate")
		y        = fs.Int64("y", 0, "parcel y coordinate")
		role     = fs.String("role", "MINTER_ROLE", "role name or 0x-prefixed hash")
		account  = fs.String("account", "", "role member address")
		owner    = fs.String("owner", "", "parcel owner address")
	)
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	var cmd *command
	switch args[0] {
	case "zone":
		cmd = &command{method: "land_zone", params: map[string]interface{}{"registry": *registry, "zone": *zone}}
	case "new-zone":
		cmd = &command{method: "land_newZone", auth: true, params: map[string]interface{}{
			"registry": *registry, "caller": *caller, "name": *name,
		}}
	case "parcel":
		cmd = &command{method: "land_parcel", params: map[string]interface{}{"registry": *registry, "id": *id}}
	case "parcel-at":
		cmd = &command{method: "land_parcelAt", params: map[string]interface{}{
			"registry": *registry, "zone": *zone, "x": *x, "y": *y,
		}}
	case "parcels":
		cmd = &command{method: "land_parcelsOf", params: map[string]interface{}{"registry": *registry, "owner": *owner}}
	case "has-role":
		cmd = &command{method: "land_hasRole", params: map[string]interface{}{
			"registry": *registry, "role": *role, "account": *account,
		}}
	case "grant-role", "revoke-role":
		method := "land_grantRole"
		if args[0] == "revoke-role" {
			method = "land_revokeRole"
		}
		cmd = &command{method: method, auth: true, params: map[string]interface{}{
			"registry": *registry, "caller": *caller, "role": *role, "account": *account,
		}}
	default:
		fmt.Fprintf(stderr, "Unknown land subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, landUsage())
		return 1
	}
	return execute(cmd, stdout, stderr)
}
