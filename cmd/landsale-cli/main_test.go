package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedCall struct {
	method string
	params map[string]interface{}
	auth   bool
}

func stubRPC(t *testing.T, result string) *[]recordedCall {
	t.Helper()
	calls := &[]recordedCall{}
	prev := rpcCall
	rpcCall = func(method string, params interface{}, requireAuth bool) (json.RawMessage, error) {
		call := recordedCall{method: method, auth: requireAuth}
		if params != nil {
			raw, err := json.Marshal(params)
			if err != nil {
				t.Fatalf("marshal params: %v", err)
			}
			if err := json.Unmarshal(raw, &call.params); err != nil {
				t.Fatalf("unmarshal params: %v", err)
			}
		}
		*calls = append(*calls, call)
		return json.RawMessage(result), nil
	}
	t.Cleanup(func() { rpcCall = prev })
	return calls
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"500e18": "500000000000000000000",
		"42":     "42",
		"0x2a":   "42",
		"1E3":    "1000",
	}
	for input, want := range cases {
		got, err := parseAmount(input)
		if err != nil || got != want {
			t.Fatalf("parseAmount(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	for _, bad := range []string{"", "-1", "abc", "5e-1"} {
		if _, err := parseAmount(bad); err == nil {
			t.Fatalf("expected %q to fail", bad)
		}
	}
}

func TestSaleMintBuildsAuthenticatedCall(t *testing.T) {
	calls := stubRPC(t, `{"parcelId":"1"}`)
	var stdout, stderr bytes.Buffer
	code := run([]string{"sale", "mint", "--buyer", "land1buyer", "--zone", "2", "--x", "-3", "--y", "7"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr.String())
	}
	if len(*calls) != 1 {
		t.Fatalf("expected one call, got %d", len(*calls))
	}
	call := (*calls)[0]
	if call.method != "landsale_mintLand" || !call.auth {
		t.Fatalf("unexpected call %+v", call)
	}
	if call.params["zone"].(float64) != 2 || call.params["x"].(float64) != -3 || call.params["buyer"] != "land1buyer" {
		t.Fatalf("unexpected params %+v", call.params)
	}
	if !strings.Contains(stdout.String(), `"parcelId": "1"`) {
		t.Fatalf("expected pretty printed result, got %s", stdout.String())
	}
}

func TestSaleSetStateWhitelist(t *testing.T) {
	calls := stubRPC(t, `{"ok":true}`)
	var stdout, stderr bytes.Buffer
	code := run([]string{"sale", "set-state", "--caller", "land1auth", "--zones", "1, 2,3", "--enabled=false", "--whitelist"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr.String())
	}
	call := (*calls)[0]
	if call.method != "landsale_setWhitelistSaleState" || call.params["enabled"] != false {
		t.Fatalf("unexpected call %+v", call)
	}
	if zones := call.params["zones"].([]interface{}); len(zones) != 3 {
		t.Fatalf("unexpected zones %v", zones)
	}

	if code := run([]string{"sale", "set-state", "--caller", "land1auth", "--zones", ""}, &stdout, &stderr); code == 0 {
		t.Fatalf("expected empty zone list to fail")
	}
}

func TestTokenApproveUsesShorthand(t *testing.T) {
	calls := stubRPC(t, `{"ok":true}`)
	var stdout, stderr bytes.Buffer
	code := run([]string{"token", "approve", "--contract", "land1token", "--owner", "land1buyer", "--spender", "land1sale", "--amount", "1000e18"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr.String())
	}
	call := (*calls)[0]
	if call.method != "token_approve" || call.params["amount"] != "1000000000000000000000" {
		t.Fatalf("unexpected call %+v", call)
	}
}

func TestLandParcelsListsByOwner(t *testing.T) {
	calls := stubRPC(t, `[{"id":"1"}]`)
	var stdout, stderr bytes.Buffer
	code := run([]string{"land", "parcels", "--registry", "land1reg", "--owner", "land1buyer"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr.String())
	}
	call := (*calls)[0]
	if call.method != "land_parcelsOf" || call.auth {
		t.Fatalf("unexpected call %+v", call)
	}
	if call.params["owner"] != "land1buyer" || call.params["registry"] != "land1reg" {
		t.Fatalf("unexpected params %+v", call.params)
	}
}

func TestUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"escrow"}, &stdout, &stderr); code == 0 {
		t.Fatalf("expected unknown command to fail")
	}
	if !strings.Contains(stderr.String(), "Usage: landsale-cli") {
		t.Fatalf("expected usage on stderr")
	}
}

func TestCallRPCSurfacesErrors(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"landsale_mintLand"`) {
			t.Errorf("unexpected body %s", body)
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32011,"message":"landsale: zone sale disabled"}}`))
	}))
	defer srv.Close()

	prevEndpoint, prevToken := rpcEndpoint, rpcAuthToken
	rpcEndpoint, rpcAuthToken = srv.URL, "secret"
	t.Cleanup(func() { rpcEndpoint, rpcAuthToken = prevEndpoint, prevToken })

	_, err := callRPC("landsale_mintLand", map[string]interface{}{"zone": 1}, true)
	rpcErr, ok := err.(*rpcError)
	if !ok || rpcErr.Code != -32011 {
		t.Fatalf("expected precondition rpc error, got %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}

	rpcAuthToken = ""
	if _, err := callRPC("landsale_mintLand", nil, true); err == nil {
		t.Fatalf("expected missing token to fail before sending")
	}
}

func TestApplyGlobalFlags(t *testing.T) {
	prev := rpcEndpoint
	t.Cleanup(func() { rpcEndpoint = prev })
	rest, err := applyGlobalFlags([]string{"--rpc", "http://node:9000", "sale", "config"})
	if err != nil {
		t.Fatalf("apply flags: %v", err)
	}
	if rpcEndpoint != "http://node:9000" || len(rest) != 2 {
		t.Fatalf("unexpected endpoint %q rest %v", rpcEndpoint, rest)
	}
}
