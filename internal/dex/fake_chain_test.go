package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type handlerKey struct {
	to     common.Address
	method string
}

type handler struct {
	abi abi.ABI
	fn  func(args []interface{}) ([]interface{}, error)
}

// fakeChain answers eth_call by decoding calldata against registered ABIs.
type fakeChain struct {
	mu       sync.Mutex
	handlers map[handlerKey]handler
	calls    map[string]int
	native   *big.Int
}

func newFakeChain() *fakeChain {
	return &fakeChain{handlers: make(map[handlerKey]handler), calls: make(map[string]int)}
}

func (f *fakeChain) on(to common.Address, lazy *lazyABI, method string, fn func(args []interface{}) ([]interface{}, error)) {
	parsed, err := lazy.get()
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	f.handlers[handlerKey{to: to, method: method}] = handler{abi: parsed, fn: fn}
	f.mu.Unlock()
}

func (f *fakeChain) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("bad call")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, h := range f.handlers {
		if key.to != *msg.To {
			continue
		}
		method, err := h.abi.MethodById(msg.Data[:4])
		if err != nil || method.Name != key.method {
			continue
		}
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		f.calls[key.method]++
		out, err := h.fn(args)
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(out...)
	}
	return nil, fmt.Errorf("execution reverted")
}

func (f *fakeChain) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	if f.native == nil {
		return nil, fmt.Errorf("no native balance")
	}
	return f.native, nil
}

func returns(values ...interface{}) func([]interface{}) ([]interface{}, error) {
	return func([]interface{}) ([]interface{}, error) { return values, nil }
}

func slot0Values(sqrt *big.Int, tick int32) []interface{} {
	return []interface{}{sqrt, big.NewInt(int64(tick)), uint16(0), uint16(1), uint16(1), uint8(0), true}
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
