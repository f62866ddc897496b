package lndclient

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/verrpc"
	"github.com/markcallen/lnd-grpc/internal/lndtest"
	"github.com/markcallen/lnd-grpc/internal/pinning"
	"github.com/markcallen/lnd-grpc/internal/pki"
	"github.com/markcallen/lnd-grpc/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func writeMacaroon(t *testing.T, raw []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "admin.macaroon")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConnectPinnedTLS(t *testing.T) {
	srv := lndtest.NewTLS(t)
	ctx := testContext(t)

	client, err := Connect(ctx, srv.URL(), CertFile(srv.CertPath), MacaroonFile(writeMacaroon(t, []byte{0xAB, 0xCD})))
	require.NoError(t, err)
	defer client.Close()

	info, err := client.Lightning().GetInfo(ctx, &lnrpc.GetInfoRequest{})
	require.NoError(t, err)
	require.Equal(t, lndtest.Alias, info.Alias)

	req := srv.LastRequest()
	require.Equal(t, "/lnrpc.Lightning/GetInfo", req.Method)
	require.Equal(t, []string{"abcd"}, req.Metadata.Get("macaroon"))
	require.Equal(t, []string{srv.Addr}, req.Metadata.Get(":authority"))

	v, err := client.Versioner().GetVersion(ctx, &verrpc.VersionRequest{})
	require.NoError(t, err)
	require.Equal(t, lndtest.Version, v.Version)

	require.NotNil(t, client.WalletKit())
	require.NotNil(t, client.Signer())
	require.NotNil(t, client.Peers())
	require.NotNil(t, client.Invoices())
	require.NotNil(t, client.Router())
	require.NotNil(t, client.State())
	require.NotNil(t, client.ChainNotifier())
	require.NotEmpty(t, client.ConnID())
}

func TestConnectConcurrentCallsShareChannel(t *testing.T) {
	srv := lndtest.NewTLS(t)
	ctx := testContext(t)

	client, err := Connect(ctx, srv.URL(), CertFile(srv.CertPath), MacaroonBytes([]byte{0x01, 0x02}))
	require.NoError(t, err)
	defer client.Close()

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := client.Lightning().GetInfo(ctx, &lnrpc.GetInfoRequest{})
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-errs)
	}
	for _, r := range srv.Requests() {
		require.Equal(t, []string{"0102"}, r.Metadata.Get("macaroon"))
	}
}

func TestConnectPlaintext(t *testing.T) {
	srv := lndtest.NewPlaintext(t)
	ctx := testContext(t)

	client, err := Connect(ctx, srv.URL(), nil, MacaroonBytes([]byte{0xAB, 0xCD}), WithEagerConnect())
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.State().GetState(ctx, &lnrpc.GetStateRequest{})
	require.NoError(t, err)
	require.Equal(t, lnrpc.WalletState_SERVER_ACTIVE, resp.State)
	require.Equal(t, []string{"abcd"}, srv.LastRequest().Metadata.Get("macaroon"))
}

func TestConnectEagerMismatch(t *testing.T) {
	srv := lndtest.NewTLS(t)
	other := lndtest.NewTLS(t)

	_, err := Connect(testContext(t), srv.URL(), CertFile(other.CertPath), MacaroonBytes([]byte{0x01}), WithEagerConnect())
	require.True(t, IsKind(err, KindConnect), "err = %v", err)

	var mm *pinning.MismatchError
	require.ErrorAs(t, err, &mm)
	require.Equal(t, pinning.ValueMismatch, mm.Kind)
	require.Equal(t, 0, mm.Position)
	require.Empty(t, srv.Requests())
}

func TestConnectEagerUnreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	_, err = Connect(testContext(t), "http://"+addr, nil, MacaroonBytes([]byte{0x01}), WithEagerConnect())
	require.True(t, IsKind(err, KindConnect), "err = %v", err)
	require.ErrorIs(t, err, transport.ErrUnreachable)
	require.ErrorIs(t, err, syscall.ECONNREFUSED)
	require.Contains(t, err.Error(), addr)
}

func TestConnectLazyMismatch(t *testing.T) {
	srv := lndtest.NewTLS(t)
	other := lndtest.NewTLS(t)
	ctx := testContext(t)

	client, err := Connect(ctx, srv.URL(), CertFile(other.CertPath), MacaroonBytes([]byte{0x01}))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Lightning().GetInfo(ctx, &lnrpc.GetInfoRequest{})
	st, ok := status.FromError(err)
	require.True(t, ok, "err = %v", err)
	require.Equal(t, codes.Unavailable, st.Code())
	require.Contains(t, st.Message(), "does not match pinned certificate")
}

func TestConnectLengthMismatch(t *testing.T) {
	srv := lndtest.NewTLS(t)
	other := lndtest.NewTLS(t)

	bundle := filepath.Join(t.TempDir(), "bundle.pem")
	require.NoError(t, pki.BuildBundle(bundle, srv.CertPath, other.CertPath))

	_, err := Connect(testContext(t), srv.URL(), CertFile(bundle), MacaroonBytes([]byte{0x01}), WithEagerConnect())
	var mm *pinning.MismatchError
	require.ErrorAs(t, err, &mm)
	require.Equal(t, pinning.LengthMismatch, mm.Kind)
	require.Equal(t, 1, mm.Presented)
	require.Equal(t, 2, mm.Pinned)
}

func TestConnectInvalidAddressBeforeIO(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.cert")
	_, err := Connect(context.Background(), "not a uri", CertFile(missing), MacaroonFile(missing))

	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, KindInvalidAddress, ce.Kind)
	require.ErrorIs(t, err, transport.ErrInvalidAddress)
}

func TestConnectReadFile(t *testing.T) {
	srv := lndtest.NewTLS(t)
	missing := filepath.Join(t.TempDir(), "missing.cert")

	_, err := Connect(context.Background(), srv.URL(), CertFile(missing), MacaroonBytes([]byte{0x01}))
	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, KindReadFile, ce.Kind)
	require.Equal(t, missing, ce.Path)
	require.ErrorIs(t, err, fs.ErrNotExist)

	missingMac := filepath.Join(t.TempDir(), "missing.macaroon")
	_, err = Connect(context.Background(), srv.URL(), CertFile(srv.CertPath), MacaroonFile(missingMac))
	require.ErrorAs(t, err, &ce)
	require.Equal(t, KindReadFile, ce.Kind)
	require.Equal(t, missingMac, ce.Path)
}

func TestConnectParseCert(t *testing.T) {
	srv := lndtest.NewTLS(t)
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.cert")
	require.NoError(t, os.WriteFile(garbage, []byte("-----BEGIN CERTIFICATE-----\nnope"), 0o644))
	_, err := Connect(context.Background(), srv.URL(), CertFile(garbage), MacaroonBytes([]byte{0x01}))
	require.True(t, IsKind(err, KindParseCert), "err = %v", err)
	require.ErrorIs(t, err, pinning.ErrMalformed)

	empty := filepath.Join(dir, "empty.cert")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Connect(context.Background(), srv.URL(), CertFile(empty), MacaroonBytes([]byte{0x01}))
	require.True(t, IsKind(err, KindParseCert), "err = %v", err)
	require.ErrorIs(t, err, pinning.ErrNoCertificates)
}

func TestConnectSchemeCertificateAgreement(t *testing.T) {
	srv := lndtest.NewTLS(t)

	_, err := Connect(context.Background(), srv.URL(), nil, MacaroonBytes([]byte{0x01}))
	require.True(t, IsKind(err, KindTLSConfig), "https without cert: %v", err)

	_, err = Connect(context.Background(), "http://"+srv.Addr, CertFile(srv.CertPath), MacaroonBytes([]byte{0x01}))
	require.True(t, IsKind(err, KindTLSConfig), "http with cert: %v", err)
}

func TestConnectUnsupportedTLSVersion(t *testing.T) {
	srv := lndtest.NewTLS(t)
	_, err := Connect(context.Background(), srv.URL(), CertFile(srv.CertPath), MacaroonBytes([]byte{0x01}), WithTLSMinVersion(0x0301))
	require.True(t, IsKind(err, KindTLSConfig), "err = %v", err)
}

func TestConnectRequiresMacaroon(t *testing.T) {
	srv := lndtest.NewTLS(t)
	_, err := Connect(context.Background(), srv.URL(), CertFile(srv.CertPath), nil)
	require.ErrorIs(t, err, ErrNoMacaroon)
}

func TestConnectCanceled(t *testing.T) {
	srv := lndtest.NewTLS(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, srv.URL(), CertFile(srv.CertPath), MacaroonFile(writeMacaroon(t, []byte{0x01})))
	require.ErrorIs(t, err, context.Canceled)
	var ce *ConnectError
	require.False(t, errors.As(err, &ce), "cancellation must not be classified: %v", err)
}

func TestConnectMetrics(t *testing.T) {
	srv := lndtest.NewTLS(t)
	reg := prometheus.NewRegistry()
	ctx := testContext(t)

	client, err := Connect(ctx, srv.URL(), CertFile(srv.CertPath), MacaroonBytes([]byte{0x01}), WithMetrics(reg))
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Lightning().GetInfo(ctx, &lnrpc.GetInfoRequest{})
	require.NoError(t, err)

	_, err = Connect(ctx, "ftp://nope", nil, MacaroonBytes([]byte{0x01}), WithMetrics(reg))
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["lndclient_connects_total"])
	require.True(t, names["lndclient_calls_total"])

	expected := `
# HELP lndclient_connects_total Connection attempts by outcome
# TYPE lndclient_connects_total counter
lndclient_connects_total{outcome="invalid_address"} 1
lndclient_connects_total{outcome="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "lndclient_connects_total"))
}

func TestClientClose(t *testing.T) {
	srv := lndtest.NewPlaintext(t)
	ctx := testContext(t)

	client, err := Connect(ctx, srv.URL(), nil, MacaroonBytes([]byte{0x01}))
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = client.Lightning().GetInfo(ctx, &lnrpc.GetInfoRequest{})
	require.Equal(t, codes.Canceled, status.Code(err))
}

func TestConnectSingleService(t *testing.T) {
	srv := lndtest.NewTLS(t)
	ctx := testContext(t)
	mac := MacaroonBytes([]byte{0xAB, 0xCD})

	versioner, err := ConnectVersioner(ctx, srv.URL(), CertFile(srv.CertPath), mac)
	require.NoError(t, err)
	defer versioner.Close()
	v, err := versioner.Client().GetVersion(ctx, &verrpc.VersionRequest{})
	require.NoError(t, err)
	require.Equal(t, lndtest.Version, v.Version)

	state, err := ConnectState(ctx, srv.URL(), CertFile(srv.CertPath), mac)
	require.NoError(t, err)
	defer state.Close()
	resp, err := state.Client().GetState(ctx, &lnrpc.GetStateRequest{})
	require.NoError(t, err)
	require.Equal(t, lnrpc.WalletState_SERVER_ACTIVE, resp.State)

	_, err = ConnectLightning(ctx, "https://", CertFile(srv.CertPath), mac)
	require.True(t, IsKind(err, KindInvalidAddress), "err = %v", err)

	_, err = ConnectRouter(ctx, srv.URL(), CertFile(srv.CertPath), nil)
	require.ErrorIs(t, err, ErrNoMacaroon)
}

func TestConnectWalletUnlocker(t *testing.T) {
	srv := lndtest.NewTLS(t)
	ctx := testContext(t)

	unlocker, err := ConnectWalletUnlocker(ctx, srv.URL(), CertFile(srv.CertPath), WithEagerConnect())
	require.NoError(t, err)
	defer unlocker.Close()

	seed, err := unlocker.Client().GenSeed(ctx, &lnrpc.GenSeedRequest{})
	require.NoError(t, err)
	require.Equal(t, lndtest.Mnemonic, seed.CipherSeedMnemonic)
	require.Empty(t, srv.LastRequest().Metadata.Get("macaroon"))

	initResp, err := unlocker.Client().InitWallet(ctx, &lnrpc.InitWalletRequest{
		WalletPassword:     []byte("password123"),
		CipherSeedMnemonic: seed.CipherSeedMnemonic,
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0xAB, 0xCD}, initResp.AdminMacaroon)
}
