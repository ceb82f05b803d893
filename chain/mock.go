package chain

import (
	"context"

	"github.com/bitfsorg/sealvault-go/identity"
)

// MockService is a test double for Service.
// All function fields must be set before the corresponding method is called.
type MockService struct {
	ExecuteTransactionFn func(ctx context.Context, txBytes []byte, sig *identity.Signature) (*Receipt, error)
	GetTransactionFn     func(ctx context.Context, digest string) (*Receipt, error)
	WaitForTransactionFn func(ctx context.Context, digest string) (*Receipt, error)
}

func (m *MockService) ExecuteTransaction(ctx context.Context, txBytes []byte, sig *identity.Signature) (*Receipt, error) {
	return m.ExecuteTransactionFn(ctx, txBytes, sig)
}
func (m *MockService) GetTransaction(ctx context.Context, digest string) (*Receipt, error) {
	return m.GetTransactionFn(ctx, digest)
}
func (m *MockService) WaitForTransaction(ctx context.Context, digest string) (*Receipt, error) {
	return m.WaitForTransactionFn(ctx, digest)
}
