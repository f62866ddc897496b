// Package lndtest runs an in-process fake lnd daemon for tests. It serves a
// subset of lnd's RPC services over pinned TLS or cleartext HTTP/2 and
// records the metadata of every request it receives.
package lndtest

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"testing"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/verrpc"
	"github.com/markcallen/lnd-grpc/internal/pki"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
)

// Version is what the fake Versioner reports.
const Version = "0.18.4-beta lndtest"

// Server is a running fake daemon.
type Server struct {
	// Addr is the host:port the server listens on.
	Addr string
	// CertPath is the PEM file of the served certificate, empty for cleartext.
	CertPath string

	Lightning *Lightning
	Unlocker  *Unlocker

	srv *grpc.Server

	mu       sync.Mutex
	requests []Request
}

// Request is one observed RPC.
type Request struct {
	Method   string
	Metadata metadata.MD
}

// NewTLS starts a server with a fresh self-signed certificate.
func NewTLS(t testing.TB) *Server {
	t.Helper()
	certPath, keyPath, err := pki.GenerateSelfSigned(t.TempDir(), pki.SelfSignedConfig{})
	if err != nil {
		t.Fatalf("generate cert: %v", err)
	}
	kp, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		t.Fatalf("load keypair: %v", err)
	}
	creds := credentials.NewTLS(&tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{kp},
	})
	s := start(t, grpc.Creds(creds))
	s.CertPath = certPath
	return s
}

// NewPlaintext starts a cleartext server.
func NewPlaintext(t testing.TB) *Server {
	t.Helper()
	return start(t)
}

func start(t testing.TB, opts ...grpc.ServerOption) *Server {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{
		Addr:      lis.Addr().String(),
		Lightning: &Lightning{},
		Unlocker:  &Unlocker{},
	}
	opts = append(opts,
		grpc.ChainUnaryInterceptor(s.unaryRecorder),
		grpc.ChainStreamInterceptor(s.streamRecorder),
	)
	s.srv = grpc.NewServer(opts...)
	lnrpc.RegisterLightningServer(s.srv, s.Lightning)
	lnrpc.RegisterStateServer(s.srv, &stateServer{})
	lnrpc.RegisterWalletUnlockerServer(s.srv, s.Unlocker)
	verrpc.RegisterVersionerServer(s.srv, &versionServer{})

	go func() { _ = s.srv.Serve(lis) }()
	t.Cleanup(s.srv.Stop)
	return s
}

// URL returns the address in the form Connect accepts.
func (s *Server) URL() string {
	if s.CertPath != "" {
		return "https://" + s.Addr
	}
	return "http://" + s.Addr
}

// Requests returns every request observed so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request, or the zero Request.
func (s *Server) LastRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}
	}
	return s.requests[len(s.requests)-1]
}

func (s *Server) record(ctx context.Context, method string) {
	md, _ := metadata.FromIncomingContext(ctx)
	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: method, Metadata: md.Copy()})
	s.mu.Unlock()
}

func (s *Server) unaryRecorder(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	s.record(ctx, info.FullMethod)
	return handler(ctx, req)
}

func (s *Server) streamRecorder(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	s.record(ss.Context(), info.FullMethod)
	return handler(srv, ss)
}

type versionServer struct {
	verrpc.UnimplementedVersionerServer
}

func (versionServer) GetVersion(context.Context, *verrpc.VersionRequest) (*verrpc.Version, error) {
	return &verrpc.Version{Version: Version, AppMajor: 0, AppMinor: 18, AppPatch: 4}, nil
}

type stateServer struct {
	lnrpc.UnimplementedStateServer
}

func (stateServer) GetState(context.Context, *lnrpc.GetStateRequest) (*lnrpc.GetStateResponse, error) {
	return &lnrpc.GetStateResponse{State: lnrpc.WalletState_SERVER_ACTIVE}, nil
}
