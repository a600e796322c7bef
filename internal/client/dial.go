// Package client talks to an expense-keeper server. Remote implements the
// protocol store over gRPC; Local binds the in-process service to a caller.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	v1 "github.com/and161185/expense-keeper/internal/api/expensesv1"
)

// BearerCreds attaches an access token to every call.
type BearerCreds struct {
	Token  string
	Secure bool
}

func (b BearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.Token}, nil
}
func (b BearerCreds) RequireTransportSecurity() bool { return b.Secure }

// DialConfig selects the server and transport security.
type DialConfig struct {
	Addr       string
	CACert     string // PEM bundle; empty uses the system roots
	SkipVerify bool   // dev only
	Plaintext  bool   // no TLS at all, for local development
	Token      string
}

// LoadTLS builds client transport credentials.
func LoadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // explicit dev switch
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// Dial opens a connection and returns the typed API client.
func Dial(cfg DialConfig, extra ...grpc.DialOption) (*grpc.ClientConn, v1.ExpenseKeeperClient, error) {
	var creds credentials.TransportCredentials
	if cfg.Plaintext {
		creds = insecure.NewCredentials()
	} else {
		var err error
		if creds, err = LoadTLS(cfg.CACert, cfg.SkipVerify); err != nil {
			return nil, nil, err
		}
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if cfg.Token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(BearerCreds{Token: cfg.Token, Secure: !cfg.Plaintext}))
	}
	cc, err := grpc.NewClient(cfg.Addr, append(opts, extra...)...)
	if err != nil {
		return nil, nil, err
	}
	return cc, v1.NewExpenseKeeperClient(cc), nil
}
