package registrar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServiceDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		svc     string
		host    string
		port    int
		wantErr bool
	}{
		{name: "valid", svc: "order-service", host: "10.0.0.1", port: 8080},
		{name: "lowest port", svc: "a", host: "h", port: 1},
		{name: "highest port", svc: "a", host: "h", port: 65535},
		{name: "empty name", svc: "", host: "h", port: 80, wantErr: true},
		{name: "blank name", svc: "   ", host: "h", port: 80, wantErr: true},
		{name: "empty host", svc: "a", host: "", port: 80, wantErr: true},
		{name: "port zero", svc: "a", host: "h", port: 0, wantErr: true},
		{name: "port too large", svc: "a", host: "h", port: 65536, wantErr: true},
		{name: "negative port", svc: "a", host: "h", port: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewServiceDescriptor(tt.svc, "1.0.0", tt.host, tt.port, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				assert.Nil(t, d)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.svc, d.Name())
			assert.Equal(t, tt.port, d.Port())
		})
	}
}

func TestServiceDescriptorImmutable(t *testing.T) {
	md := map[string]string{"zone": "a"}
	d, err := NewServiceDescriptor("order-service", "2.1.0", "::1", 9000, md)
	require.NoError(t, err)

	md["zone"] = "b"
	assert.Equal(t, "a", d.Metadata()["zone"])

	got := d.Metadata()
	got["zone"] = "c"
	assert.Equal(t, "a", d.Metadata()["zone"])

	assert.Equal(t, "[::1]:9000", d.Address())
	assert.Equal(t, "2.1.0", d.Version())
	assert.Contains(t, d.String(), "order-service")
}
