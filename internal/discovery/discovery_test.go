package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTXTRecordsSorted(t *testing.T) {
	got := TXTRecords(map[string]string{"version": "1.2", "path": "/", "model": "gaslog"})
	assert.Equal(t, []string{"model=gaslog", "path=/", "version=1.2"}, got)
	assert.Empty(t, TXTRecords(nil))
}

func TestPortFromAddr(t *testing.T) {
	tests := []struct {
		addr    string
		want    int
		wantErr bool
	}{
		{":80", 80, false},
		{"0.0.0.0:8080", 8080, false},
		{"[::1]:9000", 9000, false},
		{"80", 0, true},
		{":http", 0, true},
		{":0", 0, true},
		{":70000", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := PortFromAddr(tt.addr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdvertiseRejectsBadOptions(t *testing.T) {
	_, err := Advertise(Options{Port: 80})
	assert.Error(t, err)

	_, err = Advertise(Options{Instance: "Gas Log Controller", Port: 0})
	assert.Error(t, err)
}

func TestShutdownNilSafe(t *testing.T) {
	var a *Advertiser
	a.Shutdown()
	(&Advertiser{}).Shutdown()
}
