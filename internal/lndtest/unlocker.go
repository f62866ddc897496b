package lndtest

import (
	"context"
	"strings"
	"sync"

	"github.com/lightningnetwork/lnd/lnrpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Mnemonic is the seed GenSeed returns.
var Mnemonic = strings.Fields("abandon ability able about above absent absorb abstract absurd abuse access accident " +
	"account accuse achieve acid acoustic acquire across act action actor actress actual")

// Unlocker is the fake WalletUnlocker service.
type Unlocker struct {
	lnrpc.UnimplementedWalletUnlockerServer

	mu          sync.Mutex
	initialized bool
}

// GenSeed returns a fixed mnemonic.
func (u *Unlocker) GenSeed(context.Context, *lnrpc.GenSeedRequest) (*lnrpc.GenSeedResponse, error) {
	return &lnrpc.GenSeedResponse{CipherSeedMnemonic: Mnemonic}, nil
}

// InitWallet accepts one initialization and returns an admin macaroon.
func (u *Unlocker) InitWallet(_ context.Context, req *lnrpc.InitWalletRequest) (*lnrpc.InitWalletResponse, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.initialized {
		return nil, status.Error(codes.AlreadyExists, "wallet already exists")
	}
	if len(req.WalletPassword) < 8 {
		return nil, status.Error(codes.InvalidArgument, "password must have at least 8 characters")
	}
	u.initialized = true
	return &lnrpc.InitWalletResponse{AdminMacaroon: []byte{0xAB, 0xCD}}, nil
}
