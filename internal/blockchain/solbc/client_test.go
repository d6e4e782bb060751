package solbc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// fakeNode answers JSON-RPC calls from a per-method script.
type fakeNode struct {
	calls   atomic.Int32
	respond func(method string, attempt int32) (result any, rpcErr *jsonrpc.RPCError)
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	attempt := n.calls.Add(1)
	result, rpcErr := n.respond(req.Method, attempt)

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = map[string]any{"code": rpcErr.Code, "message": rpcErr.Message}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type latencyLog struct {
	mu      sync.Mutex
	methods []string
	errs    int
}

func (l *latencyLog) RecordRPCLatency(method string, _ time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.methods = append(l.methods, method)
	if err != nil {
		l.errs++
	}
}

func tokenBalance(amount string) map[string]any {
	return map[string]any{
		"context": map[string]any{"slot": 1},
		"value": map[string]any{
			"amount":         amount,
			"decimals":       6,
			"uiAmountString": "0",
		},
	}
}

func newTestClient(t *testing.T, node *fakeNode, retries int, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		Endpoint:   srv.URL,
		RateLimit:  1000,
		Burst:      10,
		Retries:    retries,
		Timeout:    time.Second,
		RetryDelay: time.Millisecond,
	}, zap.NewNop(), opts...)
}

func TestTokenAccountReaderRetriesTransientErrors(t *testing.T) {
	node := &fakeNode{respond: func(_ string, attempt int32) (any, *jsonrpc.RPCError) {
		if attempt < 3 {
			return nil, &jsonrpc.RPCError{Code: -32005, Message: "Node is behind by 42 slots"}
		}
		return tokenBalance("101505"), nil
	}}
	lat := &latencyLog{}
	client := newTestClient(t, node, 3, WithLatencyRecorder(lat))

	var reader arbitrage.BalanceReader = TokenAccountReader{Client: client, Account: solana.NewWallet().PublicKey()}
	bal, err := reader.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(101_505), bal)
	assert.Equal(t, int32(3), node.calls.Load())
	assert.Len(t, lat.methods, 3)
	assert.Equal(t, 2, lat.errs)
}

func TestMissingAccountIsNotRetried(t *testing.T) {
	node := &fakeNode{respond: func(string, int32) (any, *jsonrpc.RPCError) {
		return nil, &jsonrpc.RPCError{Code: -32602, Message: "Invalid param: could not find account"}
	}}
	client := newTestClient(t, node, 5)

	_, err := TokenBalances{Client: client}.TokenBalance(context.Background(), solana.NewWallet().PublicKey())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Contains(t, err.Error(), "getTokenAccountBalance")
	assert.Equal(t, int32(1), node.calls.Load())
}

func TestRetriesAreBounded(t *testing.T) {
	node := &fakeNode{respond: func(string, int32) (any, *jsonrpc.RPCError) {
		return nil, &jsonrpc.RPCError{Code: 429, Message: "Too many requests"}
	}}
	client := newTestClient(t, node, 2)

	_, err := client.GetTokenAccountBalance(context.Background(), solana.NewWallet().PublicKey())
	require.Error(t, err)
	assert.Equal(t, int32(3), node.calls.Load())
}

func TestMalformedAmount(t *testing.T) {
	node := &fakeNode{respond: func(string, int32) (any, *jsonrpc.RPCError) {
		return tokenBalance("lots"), nil
	}}
	client := newTestClient(t, node, 3)

	_, err := client.GetTokenAccountBalance(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.Equal(t, int32(1), node.calls.Load())
}

func TestGetHealth(t *testing.T) {
	node := &fakeNode{respond: func(method string, _ int32) (any, *jsonrpc.RPCError) {
		assert.Equal(t, "getHealth", method)
		return "ok", nil
	}}
	client := newTestClient(t, node, 0)
	assert.NoError(t, client.GetHealth(context.Background()))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport", errors.New("connection reset by peer"), true},
		{"node behind", &jsonrpc.RPCError{Code: -32005}, true},
		{"invalid params", &jsonrpc.RPCError{Code: -32602}, false},
		{"cancelled", context.Canceled, false},
		{"attempt timeout", context.DeadlineExceeded, true},
		{"not found", ErrAccountNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
