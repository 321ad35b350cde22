package registrationv1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodecRegistered(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	require.NotNil(t, codec)
	assert.Equal(t, CodecName, codec.Name())
}

func TestCodecPreservesMetadata(t *testing.T) {
	in := &RegisterServiceRequest{
		ServiceName: "orders",
		Host:        "10.0.0.7",
		Port:        8080,
		Metadata:    map[string]string{"http.port": "8080"},
	}
	data, err := Codec{}.Marshal(in)
	require.NoError(t, err)

	out := new(RegisterServiceRequest)
	require.NoError(t, Codec{}.Unmarshal(data, out))
	assert.Equal(t, in, out)

	assert.Error(t, Codec{}.Unmarshal([]byte{0xc1}, out))
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "REGISTRATION_STATUS_REGISTERED", RegistrationStatus_REGISTERED.String())
	assert.Equal(t, "REGISTRATION_STATUS(9)", RegistrationStatus(9).String())
	assert.Equal(t, "HEALTH_STATUS_DOWN", HealthStatus_DOWN.String())
}
