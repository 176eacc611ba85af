package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"labprov/internal/domain"
	"labprov/internal/inspector"
	"labprov/internal/repository/sqlite"
	"labprov/internal/transport"
)

type mockDialer struct {
	mock.Mock
}

func (m *mockDialer) Open(ctx context.Context, address string, creds domain.Credentials) (transport.Session, error) {
	args := m.Called(ctx, address, creds)
	sess, _ := args.Get(0).(transport.Session)
	return sess, args.Error(1)
}

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Execute(ctx context.Context, command string) (string, error) {
	args := m.Called(ctx, command)
	return args.String(0), args.Error(1)
}

func (m *mockSession) Close() error {
	return m.Called().Error(0)
}

type failingStore struct {
	*sqlite.Repository
	err error
}

func (s failingStore) Upsert(ctx context.Context, managementAddress, hostname, loopbackAddress string) error {
	return s.err
}

var creds = domain.Credentials{Username: "admin", Password: "admin"}

func eosSession(hostname, loopback string) *mockSession {
	s := &mockSession{}
	s.On("Execute", mock.Anything, "show hostname").Return("Hostname: "+hostname+"\nFQDN:     "+hostname+"\n", nil)
	s.On("Execute", mock.Anything, "show ip interface loopback0").Return("Loopback0 is up\n  IP Address: "+loopback+"/32\n", nil)
	s.On("Execute", mock.Anything, "show ip interface brief").Return("Ethernet1   10.1.1.0/31   up   up   1500\n", nil)
	s.On("Close").Return(nil)
	return s
}

func newStore(t *testing.T) *sqlite.Repository {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testConfig() Config {
	return Config{
		InterfacesCommand: "show ip interface brief",
		Concurrency:       3,
		Credentials:       creds,
	}
}

func TestRunIsolatesUnreachableDevice(t *testing.T) {
	store := newStore(t)
	insp := inspector.NewStatic([]string{"172.20.20.2", "172.20.20.3", "172.20.20.4"})

	s1 := eosSession("ceos1", "10.0.0.1")
	s3 := eosSession("ceos3", "10.0.0.3")

	dialer := &mockDialer{}
	dialer.On("Open", mock.Anything, "172.20.20.2", creds).Return(s1, nil)
	dialer.On("Open", mock.Anything, "172.20.20.3", creds).Return(nil, errors.New("connection refused"))
	dialer.On("Open", mock.Anything, "172.20.20.4", creds).Return(s3, nil)

	report, err := New(insp, dialer, store, testConfig(), zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Discovered)
	assert.Equal(t, 2, report.Reconciled)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, domain.StageConnect, report.Failures[0].Stage)
	assert.Equal(t, "172.20.20.3", report.Failures[0].Address)

	devices, err := store.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "ceos1", devices[0].Hostname)
	assert.Equal(t, "10.0.0.3", devices[1].LoopbackAddress)
	assert.Equal(t, []string{"Ethernet1"}, devices[0].InfrastructureInterfaces)

	s1.AssertCalled(t, "Close")
	s3.AssertCalled(t, "Close")
	dialer.AssertExpectations(t)
}

func TestRunSkipsDeviceWithoutLoopback(t *testing.T) {
	store := newStore(t)
	insp := inspector.NewStatic([]string{"172.20.20.2"})

	s := &mockSession{}
	s.On("Execute", mock.Anything, "show hostname").Return("Hostname: ceos1\n", nil)
	s.On("Execute", mock.Anything, "show ip interface loopback0").Return("% Interface does not exist\n", nil)
	s.On("Close").Return(nil)

	dialer := &mockDialer{}
	dialer.On("Open", mock.Anything, "172.20.20.2", creds).Return(s, nil)

	report, err := New(insp, dialer, store, testConfig(), zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Incomplete)
	assert.Equal(t, 0, report.Reconciled)
	assert.Equal(t, 0, report.Failed)

	dev, err := store.GetDevice(context.Background(), "172.20.20.2")
	require.NoError(t, err)
	assert.Nil(t, dev, "no row may be written without a loopback")
	s.AssertNotCalled(t, "Execute", mock.Anything, "show ip interface brief")
	s.AssertCalled(t, "Close")
}

func TestRunRecordsQueryAndPersistFailures(t *testing.T) {
	insp := inspector.NewStatic([]string{"172.20.20.2", "172.20.20.3"})

	broken := &mockSession{}
	broken.On("Execute", mock.Anything, "show hostname").Return("", errors.New("session reset"))
	broken.On("Close").Return(nil)

	dialer := &mockDialer{}
	dialer.On("Open", mock.Anything, "172.20.20.2", creds).Return(broken, nil)
	dialer.On("Open", mock.Anything, "172.20.20.3", creds).Return(eosSession("ceos2", "10.0.0.2"), nil)

	store := failingStore{Repository: newStore(t), err: errors.New("disk full")}

	report, err := New(insp, dialer, store, testConfig(), zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Failures, 2)
	assert.Equal(t, domain.StageQuery, report.Failures[0].Stage)
	assert.Equal(t, domain.StagePersist, report.Failures[1].Stage)
	assert.Equal(t, "ceos2", report.Failures[1].Host)
	broken.AssertCalled(t, "Close")
}

func TestRunIdempotent(t *testing.T) {
	store := newStore(t)
	insp := inspector.NewStatic([]string{"172.20.20.2", "172.20.20.3"})

	dialer := &mockDialer{}
	dialer.On("Open", mock.Anything, "172.20.20.2", creds).Return(eosSession("ceos1", "10.0.0.1"), nil)
	dialer.On("Open", mock.Anything, "172.20.20.3", creds).Return(eosSession("ceos2", "10.0.0.2"), nil)

	d := New(insp, dialer, store, testConfig(), zerolog.Nop())

	_, err := d.Run(context.Background())
	require.NoError(t, err)
	first, err := store.ListDevices(context.Background())
	require.NoError(t, err)

	_, err = d.Run(context.Background())
	require.NoError(t, err)
	second, err := store.ListDevices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
}

type brokenInspector struct{}

func (brokenInspector) Name() string { return "broken" }

func (brokenInspector) Running(ctx context.Context) ([]inspector.Node, error) {
	return nil, errors.New("containerlab not installed")
}

func TestRunInspectorFailure(t *testing.T) {
	_, err := New(brokenInspector{}, &mockDialer{}, newStore(t), testConfig(), zerolog.Nop()).Run(context.Background())
	assert.ErrorContains(t, err, "containerlab not installed")
}
