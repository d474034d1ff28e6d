// SPDX-License-Identifier: MIT

package hdhr

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// startResponder answers every valid discovery request with the given
// packets and returns the UDP port it listens on.
func startResponder(t *testing.T, replies ...[]byte) int {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 1500)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if _, _, err := DecodeRequest(buf[:n]); err != nil {
				continue
			}
			for _, r := range replies {
				_, _ = conn.WriteToUDP(r, addr)
			}
		}
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	require.True(t, ok)
	return udpAddr.Port
}

func loopbackInterfaces(extra ...Interface) func() ([]Interface, error) {
	return func() ([]Interface, error) {
		lo := Interface{Name: "lo", IP: net.IPv4(127, 0, 0, 1).To4(), Broadcast: net.IPv4(127, 0, 0, 1).To4()}
		return append(extra, lo), nil
	}
}

func mustEncode(t *testing.T, r Reply) []byte {
	t.Helper()
	pkt, err := EncodeReply(r)
	require.NoError(t, err)
	return pkt
}

func TestDiscover_ClassifiesAndDeduplicates(t *testing.T) {
	storage := mustEncode(t, storageReply())
	tuner := mustEncode(t, Reply{DeviceType: DeviceTypeTuner, DeviceID: 0x10123456, HasDeviceID: true, TunerCount: 4, BaseURL: "http://127.0.0.1:81"})
	noID := mustEncode(t, Reply{DeviceType: DeviceTypeTuner, BaseURL: "http://127.0.0.1:82"})
	corrupt := append([]byte(nil), storage...)
	corrupt[len(corrupt)-1] ^= 0xFF

	port := startResponder(t, storage, storage, tuner, noID, corrupt)

	d := &Discoverer{
		Port:       port,
		Window:     100 * time.Millisecond,
		Interfaces: loopbackInterfaces(),
		Logger:     zerolog.Nop(),
	}

	res, err := d.Discover(context.Background())
	require.NoError(t, err)

	require.Len(t, res.StorageServers, 1)
	s := res.StorageServers[0]
	assert.Equal(t, KindStorage, s.Kind)
	assert.Equal(t, "1050A1B2", s.ID)
	assert.Equal(t, "127.0.0.1", s.IP)
	assert.Equal(t, "http://192.168.1.20:80", s.BaseURL)

	require.Len(t, res.Tuners, 1)
	assert.Equal(t, "10123456", res.Tuners[0].ID)
	assert.Equal(t, 4, res.Tuners[0].TunerCount)
}

func TestCollector_StorageWithoutBaseURLKeyedByAddress(t *testing.T) {
	r := storageReply()
	r.BaseURL = ""
	pkt := mustEncode(t, r)

	c := newCollector()
	c.add(pkt, &net.UDPAddr{IP: net.IPv4(192, 168, 1, 20), Port: DiscoverUDPPort}, zerolog.Nop())
	c.add(pkt, &net.UDPAddr{IP: net.IPv4(192, 168, 1, 21), Port: DiscoverUDPPort}, zerolog.Nop())
	c.add(pkt, &net.UDPAddr{IP: net.IPv4(192, 168, 1, 20), Port: DiscoverUDPPort}, zerolog.Nop())

	res := c.result()
	require.Len(t, res.StorageServers, 2)
	assert.Equal(t, "192.168.1.20", res.StorageServers[0].IP)
	assert.Equal(t, "192.168.1.21", res.StorageServers[1].IP)
}

func TestDiscover_BindFailureDoesNotAbortOthers(t *testing.T) {
	port := startResponder(t, mustEncode(t, storageReply()))

	// TEST-NET-3 is never assigned to a local interface, so bind fails.
	bogus := Interface{Name: "bogus0", IP: net.IPv4(203, 0, 113, 7).To4(), Broadcast: net.IPv4(203, 0, 113, 255).To4()}
	d := &Discoverer{
		Port:       port,
		Window:     100 * time.Millisecond,
		Interfaces: loopbackInterfaces(bogus),
		Logger:     zerolog.Nop(),
	}

	res, err := d.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.StorageServers, 1)
}

func TestDiscover_NoRepliesIsNotAnError(t *testing.T) {
	port := startResponder(t)
	d := &Discoverer{
		Port:       port,
		Rounds:     1,
		Window:     50 * time.Millisecond,
		Interfaces: loopbackInterfaces(),
		Logger:     zerolog.Nop(),
	}

	start := time.Now()
	res, err := d.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.StorageServers)
	assert.Empty(t, res.Tuners)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDiscover_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &Discoverer{Interfaces: loopbackInterfaces(), Logger: zerolog.Nop()}
	_, err := d.Discover(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(Reply{DeviceType: DeviceTypeTuner}, "10.0.0.1"))
	assert.Nil(t, classify(Reply{DeviceType: DeviceTypeTuner, HasDeviceID: true, DeviceID: 0}, "10.0.0.1"))

	tuner := classify(Reply{DeviceType: DeviceTypeTuner, HasDeviceID: true, DeviceID: 0xAB}, "10.0.0.1")
	require.NotNil(t, tuner)
	assert.Equal(t, "000000AB", tuner.ID)
	assert.Equal(t, KindTuner, tuner.Kind)

	// A storage id wins over the advertised device type.
	storage := classify(Reply{DeviceType: DeviceTypeTuner, StorageID: "X", BaseURL: "http://10.0.0.2"}, "10.0.0.2")
	require.NotNil(t, storage)
	assert.Equal(t, KindStorage, storage.Kind)
	assert.Equal(t, "10.0.0.2", storage.Key())
}
