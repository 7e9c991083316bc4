package application_test

import (
	"context"

	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/pkg/slate"
	"github.com/stretchr/testify/mock"
)

// **** Node ****

type mockNodeClient struct {
	mock.Mock
}

func (m *mockNodeClient) GetTip(ctx context.Context) (*ports.Tip, error) {
	args := m.Called(ctx)

	var res *ports.Tip
	if a := args.Get(0); a != nil {
		res = a.(*ports.Tip)
	}
	return res, args.Error(1)
}

func (m *mockNodeClient) GetPMMRIndices(
	ctx context.Context, startHeight, endHeight uint64,
) (*ports.PMMRIndices, error) {
	args := m.Called(ctx, startHeight, endHeight)

	var res *ports.PMMRIndices
	if a := args.Get(0); a != nil {
		res = a.(*ports.PMMRIndices)
	}
	return res, args.Error(1)
}

func (m *mockNodeClient) GetUnspentOutputs(
	ctx context.Context, startIndex, endIndex, max uint64,
) (*ports.OutputListing, error) {
	args := m.Called(ctx, startIndex, endIndex, max)

	var res *ports.OutputListing
	if a := args.Get(0); a != nil {
		res = a.(*ports.OutputListing)
	}
	return res, args.Error(1)
}

func (m *mockNodeClient) GetOutputs(
	ctx context.Context, commits []string,
) ([]ports.NodeOutput, error) {
	args := m.Called(ctx, commits)

	var res []ports.NodeOutput
	if a := args.Get(0); a != nil {
		res = a.([]ports.NodeOutput)
	}
	return res, args.Error(1)
}

func (m *mockNodeClient) GetKernel(
	ctx context.Context, excess string, minHeight, maxHeight uint64,
) (*ports.KernelLocation, error) {
	args := m.Called(ctx, excess, minHeight, maxHeight)

	var res *ports.KernelLocation
	if a := args.Get(0); a != nil {
		res = a.(*ports.KernelLocation)
	}
	return res, args.Error(1)
}

func (m *mockNodeClient) PushTransaction(
	ctx context.Context, tx ports.Transaction,
) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

// **** Transport ****

type mockSlateSender struct {
	mock.Mock
}

func (m *mockSlateSender) SendSlate(
	ctx context.Context, dest string, s slate.Slate,
) (slate.Slate, error) {
	args := m.Called(ctx, dest, s)

	var res slate.Slate
	if a := args.Get(0); a != nil {
		res = a.(slate.Slate)
	}
	return res, args.Error(1)
}

// loopbackSender delivers slates straight to another wallet.
type loopbackSender struct {
	receiver ports.SlateReceiver
}

func (l loopbackSender) SendSlate(
	ctx context.Context, _ string, s slate.Slate,
) (slate.Slate, error) {
	return l.receiver.ReceiveSlate(ctx, s)
}
