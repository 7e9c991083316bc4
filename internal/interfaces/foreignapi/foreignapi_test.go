package foreignapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/internal/infrastructure/transport/https"
	"github.com/ironbelly/walletd/internal/interfaces/foreignapi"
	"github.com/ironbelly/walletd/pkg/slate"
	"github.com/ironbelly/walletd/pkg/util"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReceiver struct {
	mock.Mock
}

func (m *mockReceiver) ReceiveSlate(
	ctx context.Context, s slate.Slate,
) (slate.Slate, error) {
	args := m.Called(ctx, s)

	var res slate.Slate
	if a := args.Get(0); a != nil {
		res = a.(slate.Slate)
	}
	return res, args.Error(1)
}

func rpcCall(
	t *testing.T, h http.Handler, method string, params ...interface{},
) util.RPCResponse {
	req, err := util.NewRPCRequest(1, method, params...)
	require.NoError(t, err)
	body, err := json.Marshal(req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(
		http.MethodPost, foreignapi.Path, strings.NewReader(string(body)),
	))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp util.RPCResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCheckVersion(t *testing.T) {
	t.Parallel()

	h := foreignapi.NewHandler(&mockReceiver{})
	resp := rpcCall(t, h, "check_version")
	require.Nil(t, resp.Error)

	var result struct {
		Ok foreignapi.VersionInfo
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Equal(t, 2, result.Ok.ForeignAPIVersion)
	require.Equal(t, []string{"V4"}, result.Ok.SupportedSlateVersions)
}

func TestReceiveTx(t *testing.T) {
	t.Parallel()

	s := slate.New(slate.Standard, 10, 100)
	response := s.WithState(slate.AwaitingFinalization)
	armored, err := slate.Armor(s)
	require.NoError(t, err)

	receiver := &mockReceiver{}
	receiver.On("ReceiveSlate", mock.Anything, s).Return(response, nil)
	h := foreignapi.NewHandler(receiver)

	tests := []struct {
		name  string
		param interface{}
	}{
		{"json", s},
		{"armored", armored},
	}
	for _, tt := range tests {
		resp := rpcCall(t, h, "receive_tx", tt.param, nil, nil)
		require.Nil(t, resp.Error, tt.name)

		var result struct {
			Ok slate.Slate
		}
		require.NoError(t, json.Unmarshal(resp.Result, &result), tt.name)
		require.True(t, response.Equal(result.Ok), tt.name)
	}
	receiver.AssertNumberOfCalls(t, "ReceiveSlate", 2)
}

func TestReceiveTxFailure(t *testing.T) {
	t.Parallel()

	s := slate.New(slate.Standard, 10, 100)
	receiver := &mockReceiver{}
	receiver.On("ReceiveSlate", mock.Anything, mock.Anything).
		Return(nil, errors.New("slate was already received"))
	h := foreignapi.NewHandler(receiver)

	resp := rpcCall(t, h, "receive_tx", s)
	require.Nil(t, resp.Error)
	var result struct {
		Err string
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Equal(t, "slate was already received", result.Err)

	tests := []struct {
		name   string
		method string
		params []interface{}
		code   int
	}{
		{"missing slate", "receive_tx", nil, -32602},
		{"invalid slate", "receive_tx", []interface{}{"not a slate"}, -32602},
		{"unknown method", "finalize_tx", nil, -32601},
	}
	for _, tt := range tests {
		resp := rpcCall(t, h, tt.method, tt.params...)
		require.NotNil(t, resp.Error, tt.name)
		require.Equal(t, tt.code, resp.Error.Code, tt.name)
	}
	receiver.AssertNumberOfCalls(t, "ReceiveSlate", 1)
}

func TestServerWithSender(t *testing.T) {
	t.Parallel()

	s := slate.New(slate.Standard, 10, 100)
	response := s.WithState(slate.AwaitingFinalization)
	receiver := &mockReceiver{}
	receiver.On("ReceiveSlate", mock.Anything, s).Return(response, nil)

	srv, err := foreignapi.NewServer(foreignapi.ServerOpts{Address: "127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errC := make(chan error, 1)
	go func() {
		errC <- srv.Listen(ctx, receiver)
	}()
	require.Eventually(t, func() bool {
		return srv.Address() != ""
	}, 5*time.Second, 10*time.Millisecond)

	sender, err := https.NewSender(https.SenderOpts{})
	require.NoError(t, err)

	got, err := sender.SendSlate(context.Background(), srv.Address(), s)
	require.NoError(t, err)
	require.True(t, response.Equal(got))

	_, err = sender.SendSlate(context.Background(), "ftp://example.com", s)
	require.ErrorIs(t, err, ports.ErrTransport)

	// Onion destinations need tor.
	_, err = sender.SendSlate(
		context.Background(),
		"http://2gzyxa5ihm7nsggfxnu52rck2vv4rvmdlkiu3zzui5du4xyclen53wid.onion", s,
	)
	require.ErrorIs(t, err, ports.ErrTransport)

	cancel()
	require.NoError(t, <-errC)
	require.Empty(t, srv.Address())

	// The destination is gone.
	_, err = sender.SendSlate(context.Background(), "http://127.0.0.1:1", s)
	require.ErrorIs(t, err, ports.ErrTransport)
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	_, err := foreignapi.NewServer(foreignapi.ServerOpts{Address: "localhost"})
	require.Error(t, err)
}
