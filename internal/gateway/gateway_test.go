package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mholland/senville-sync/internal/model"
)

type fakeSession struct {
	state    model.DeviceState
	queryErr error
	applyErr error
	applied  []model.DeviceState
	closed   bool
}

func (s *fakeSession) Query(ctx context.Context) (model.DeviceState, error) {
	if s.queryErr != nil {
		return model.DeviceState{}, s.queryErr
	}
	return s.state, nil
}

func (s *fakeSession) Apply(ctx context.Context, st model.DeviceState) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applied = append(s.applied, st)
	s.state = st
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func TestFetch_LazyConnectOnce(t *testing.T) {
	sess := &fakeSession{state: model.DeviceState{Running: true, Mode: 2}}
	dials := 0
	c := New(func(ctx context.Context) (Session, error) {
		dials++
		return sess, nil
	}, "10.0.0.5", time.Second)

	st, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Running)

	_, err = c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dials, "session should be cached after first use")
}

func TestFetch_DialFailureIsConnectionError(t *testing.T) {
	c := New(func(ctx context.Context) (Session, error) {
		return nil, errors.New("no route to host")
	}, "10.0.0.5", time.Second)

	_, err := c.Fetch(context.Background())
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "10.0.0.5", connErr.Addr)
}

func TestFetch_QueryFailureDropsSession(t *testing.T) {
	bad := &fakeSession{queryErr: errors.New("short read")}
	good := &fakeSession{state: model.DeviceState{Mode: 4}}
	dials := 0
	c := New(func(ctx context.Context) (Session, error) {
		dials++
		if dials == 1 {
			return bad, nil
		}
		return good, nil
	}, "10.0.0.5", time.Second)

	_, err := c.Fetch(context.Background())
	var commErr *CommunicationError
	require.ErrorAs(t, err, &commErr)
	assert.Equal(t, "fetch", commErr.Op)
	assert.True(t, bad.closed, "failed session should be closed")

	// Next call re-dials and succeeds.
	st, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, st.Mode)
	assert.Equal(t, 2, dials)
}

func TestPush_AppliesFullSnapshot(t *testing.T) {
	sess := &fakeSession{}
	c := New(func(ctx context.Context) (Session, error) {
		return sess, nil
	}, "10.0.0.5", time.Second)

	want := model.DeviceState{Running: true, Mode: 2, TargetTempC: 24, FanSpeed: 60}
	require.NoError(t, c.Push(context.Background(), want))
	require.Len(t, sess.applied, 1)
	assert.Equal(t, want, sess.applied[0])
}

func TestPush_ApplyFailureIsCommunicationError(t *testing.T) {
	sess := &fakeSession{applyErr: errors.New("device closed connection")}
	c := New(func(ctx context.Context) (Session, error) {
		return sess, nil
	}, "10.0.0.5", time.Second)

	err := c.Push(context.Background(), model.DeviceState{})
	var commErr *CommunicationError
	require.ErrorAs(t, err, &commErr)
	assert.Equal(t, "push", commErr.Op)
	assert.True(t, sess.closed)
}

func TestClose_Idempotent(t *testing.T) {
	sess := &fakeSession{}
	c := New(func(ctx context.Context) (Session, error) {
		return sess, nil
	}, "10.0.0.5", time.Second)

	_, err := c.Fetch(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.True(t, sess.closed)
	require.NoError(t, c.Close())
}
