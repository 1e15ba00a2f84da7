package utils

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

func GetTLSGRPC(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(credentials.NewTLS(nil)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to grpc client with addr: %s: %w", addr, err)
	}

	return conn, nil
}

func GetNonTLSGRPC(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to grpc client with addr: %s: %w", addr, err)
	}

	return conn, nil
}

func GetGRPC(addr string, useTLS bool) (*grpc.ClientConn, error) {
	if addr == "" {
		return nil, fmt.Errorf("grpc address not set")
	}
	if useTLS {
		return GetTLSGRPC(addr)
	}
	return GetNonTLSGRPC(addr)
}
