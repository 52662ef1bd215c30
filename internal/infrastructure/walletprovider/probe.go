package walletprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// ErrProbeUnsupported is returned by Probe for endpoints that are not plain HTTP.
var ErrProbeUnsupported = errors.New("probe supports only http(s) endpoints")

const defaultProbeTimeout = 5 * time.Second

type probeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type probeResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Probe checks that an HTTP wallet endpoint answers JSON-RPC and returns its web3_clientVersion.
func Probe(ctx context.Context, endpoint string, timeout time.Duration) (string, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return "", ErrProbeUnsupported
	}

	body, err := jsonAPI.Marshal(probeRequest{JSONRPC: "2.0", ID: 1, Method: "web3_clientVersion", Params: []any{}})
	if err != nil {
		return "", fmt.Errorf("encode probe request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := fasthttp.DoDeadline(req, resp, deadline); err != nil {
		return "", fmt.Errorf("probe %s: %w", endpoint, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("probe %s: unexpected status %d", endpoint, resp.StatusCode())
	}

	var out probeResponse
	if err := jsonAPI.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("probe %s: decode response: %w", endpoint, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("probe %s: rpc error %d: %s", endpoint, out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}
