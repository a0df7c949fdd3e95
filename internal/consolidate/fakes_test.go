package consolidate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-consolidator/pkg/types"
)

func testOutpoint(n int) types.Outpoint {
	op, err := types.NewOutpoint(fmt.Sprintf("%064x", n+1), uint32(n%4))
	if err != nil {
		panic(err)
	}
	return op
}

func coin(n int, amount uint64) Coin {
	return Coin{Outpoint: testOutpoint(n), Amount: amount, Status: StatusConfirmed}
}

func estimates(sixBlock FeeRate) *FeeEstimates {
	return &FeeEstimates{
		Estimates: []FeeEstimate{
			{BlockCount: 2, FeeRate: sixBlock * 2},
			{BlockCount: 6, FeeRate: sixBlock},
			{BlockCount: 12, FeeRate: sixBlock / 2},
		},
		MinAcceptable: 1,
		MaxAcceptable: 1000,
	}
}

// fakeOracle returns fn(call) where call counts from 1.
type fakeOracle struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (*FeeEstimates, error)
}

func staticOracle(est *FeeEstimates) *fakeOracle {
	return &fakeOracle{fn: func(int) (*FeeEstimates, error) { return est, nil }}
}

func (o *fakeOracle) Estimates(ctx context.Context) (*FeeEstimates, error) {
	o.mu.Lock()
	o.calls++
	call := o.calls
	o.mu.Unlock()
	return o.fn(call)
}

func (o *fakeOracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type sendCall struct {
	coins   []types.Outpoint
	dest    string
	feeRate FeeRate
}

type fakeWallet struct {
	mu        sync.Mutex
	coins     []Coin
	floor     uint64
	listErr   error
	floorErr  error
	addrErr   error
	sendErr   error
	listCalls int
	addrKinds []AddressKind
	sends     []sendCall
}

func (w *fakeWallet) ListUnspent(ctx context.Context) ([]Coin, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listCalls++
	if w.listErr != nil {
		return nil, w.listErr
	}
	return append([]Coin(nil), w.coins...), nil
}

func (w *fakeWallet) ReserveFloor(ctx context.Context) (uint64, error) {
	if w.floorErr != nil {
		return 0, w.floorErr
	}
	return w.floor, nil
}

func (w *fakeWallet) NewAddress(ctx context.Context, kind AddressKind) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.addrKinds = append(w.addrKinds, kind)
	if w.addrErr != nil {
		return "", w.addrErr
	}
	return "bcrt1pconsolidationdestination", nil
}

func (w *fakeWallet) BuildAndSend(ctx context.Context, coins []types.Outpoint, dest string, feeRate FeeRate) (*Withdrawal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sends = append(w.sends, sendCall{coins: coins, dest: dest, feeRate: feeRate})
	if w.sendErr != nil {
		return nil, w.sendErr
	}
	return &Withdrawal{Tx: "0200deadbeef", TxID: fmt.Sprintf("%064x", len(w.sends))}, nil
}

// fakeConsolidator records every Execute call.
type fakeConsolidator struct {
	mu    sync.Mutex
	calls []Args
	errs  []error // consumed in order; nil or exhausted = success
}

func (c *fakeConsolidator) Execute(ctx context.Context, args Args) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, args)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &Receipt{Count: 3, TxID: "ab"}, nil
}

func (c *fakeConsolidator) Calls() []Args {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Args(nil), c.calls...)
}

type memJobStore struct {
	mu      sync.Mutex
	job     *Args
	saveErr error
	saves   int
	deletes int
}

func (s *memJobStore) Save(args Args) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.job = &args
	return nil
}

func (s *memJobStore) Load() (Args, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return Args{}, ErrNoJob
	}
	return *s.job, nil
}

func (s *memJobStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	s.job = nil
	return nil
}

func (s *memJobStore) Job() *Args {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

func (s *memJobStore) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

// fakeClock advances on Sleep instead of blocking.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

var errNodeDown = errors.New("node down")
