// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/camsession/internal/camera/model"
	"github.com/ManuGH/camsession/internal/camera/sim"
)

func cam(id string, facing model.Facing) model.CameraDescriptor {
	return model.CameraDescriptor{
		ID:                id,
		Facing:            facing,
		SensorOrientation: 90,
		Configurations: []model.StreamConfiguration{
			{Format: model.FormatYUV420, Width: 640, Height: 480},
		},
	}
}

// flakyPlatform fails Characteristics for selected ids.
type flakyPlatform struct {
	*sim.Platform
	broken map[string]bool
}

func (f *flakyPlatform) Characteristics(ctx context.Context, id string) (model.CameraDescriptor, error) {
	if f.broken[id] {
		return model.CameraDescriptor{}, errors.New("characteristics unreadable")
	}
	return f.Platform.Characteristics(ctx, id)
}

func TestEnumerate_SkipsUnreadableDevices(t *testing.T) {
	p := sim.New(sim.Options{}, cam("0", model.FacingBack), cam("1", model.FacingFront))
	defer p.Close()
	reg := New(&flakyPlatform{Platform: p, broken: map[string]bool{"0": true}})

	descs, err := reg.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "1", descs[0].ID)
}

func TestEnumerate_NoUsableDevice(t *testing.T) {
	p := sim.New(sim.Options{}, cam("0", model.FacingBack))
	defer p.Close()
	reg := New(&flakyPlatform{Platform: p, broken: map[string]bool{"0": true}})

	_, err := reg.Enumerate(context.Background())
	assert.ErrorIs(t, err, model.ErrDeviceEnumeration)

	_, err = reg.SelectDefault(model.FacingBack)
	assert.ErrorIs(t, err, model.ErrDeviceEnumeration)
}

func TestEnumerate_EmptyPlatform(t *testing.T) {
	p := sim.New(sim.Options{})
	defer p.Close()
	_, err := New(p).Enumerate(context.Background())
	assert.ErrorIs(t, err, model.ErrDeviceEnumeration)
}

func TestEnumerate_ClosedPlatform(t *testing.T) {
	p := sim.New(sim.Options{}, cam("0", model.FacingBack))
	p.Close()
	_, err := New(p).Enumerate(context.Background())
	assert.ErrorIs(t, err, model.ErrDeviceEnumeration)
}

func TestSelectDefault(t *testing.T) {
	tests := []struct {
		name      string
		devices   []model.CameraDescriptor
		preferred model.Facing
		want      string
	}{
		{
			name:      "preferred facing present",
			devices:   []model.CameraDescriptor{cam("0", model.FacingFront), cam("1", model.FacingBack)},
			preferred: model.FacingBack,
			want:      "1",
		},
		{
			name:      "first match in enumeration order",
			devices:   []model.CameraDescriptor{cam("a", model.FacingBack), cam("b", model.FacingBack)},
			preferred: model.FacingBack,
			want:      "a",
		},
		{
			name:      "falls back to first device",
			devices:   []model.CameraDescriptor{cam("ext", model.FacingExternal), cam("f", model.FacingFront)},
			preferred: model.FacingBack,
			want:      "ext",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := sim.New(sim.Options{}, tc.devices...)
			defer p.Close()
			reg := New(p)
			_, err := reg.Enumerate(context.Background())
			require.NoError(t, err)

			got, err := reg.SelectDefault(tc.preferred)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.ID)
		})
	}
}

func TestDescriptorsAreCopies(t *testing.T) {
	p := sim.New(sim.Options{}, cam("0", model.FacingBack))
	defer p.Close()
	reg := New(p)
	_, err := reg.Enumerate(context.Background())
	require.NoError(t, err)

	d, ok := reg.Get("0")
	require.True(t, ok)
	d.Configurations[0].Width = 1
	d.SensorOrientation = 0

	again, _ := reg.Get("0")
	assert.Equal(t, 640, again.Configurations[0].Width)
	assert.Equal(t, 90, again.SensorOrientation)
}

func TestAvailabilityFollowsPlatform(t *testing.T) {
	p := sim.New(sim.Options{}, cam("0", model.FacingBack))
	defer p.Close()
	reg := New(p)
	_, err := reg.Enumerate(context.Background())
	require.NoError(t, err)
	stop := reg.Watch()
	defer stop()

	assert.True(t, reg.Available("0"))
	p.SetAvailable("0", false)
	require.Eventually(t, func() bool { return !reg.Available("0") }, time.Second, 5*time.Millisecond)
	p.SetAvailable("0", true)
	require.Eventually(t, func() bool { return reg.Available("0") }, time.Second, 5*time.Millisecond)

	// The descriptor itself never changes with availability.
	d, ok := reg.Get("0")
	require.True(t, ok)
	assert.Equal(t, cam("0", model.FacingBack), d)

	assert.False(t, reg.Available("unknown"))
	reg.SetAvailable("unknown", true)
	assert.False(t, reg.Available("unknown"))
}

func TestDisconnectedNotifiesObservers(t *testing.T) {
	p := sim.New(sim.Options{}, cam("0", model.FacingBack), cam("1", model.FacingFront))
	defer p.Close()
	reg := New(p)
	_, err := reg.Enumerate(context.Background())
	require.NoError(t, err)

	var mu sync.Mutex
	var gone []string
	reg.OnDisconnect(func(id string) {
		mu.Lock()
		gone = append(gone, id)
		mu.Unlock()
		// Observers run outside the registry lock.
		_ = reg.Descriptors()
	})

	assert.True(t, reg.Disconnected("0"))
	assert.False(t, reg.Disconnected("0"))

	mu.Lock()
	assert.Equal(t, []string{"0"}, gone)
	mu.Unlock()

	descs := reg.Descriptors()
	require.Len(t, descs, 1)
	assert.Equal(t, "1", descs[0].ID)
	assert.False(t, reg.Available("0"))
}
