package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveDeterministic(t *testing.T) {
	attrs := DeviceAttributes{UUID: "F0AE-1234", CPU: "Intel i7-9750H", MAC: "aa:bb:cc:dd:ee:ff"}

	first := Derive(attrs)
	second := Derive(attrs)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.True(t, IsValidFormat(first))
}

func TestDeriveFieldSensitivity(t *testing.T) {
	base := DeviceAttributes{UUID: "uuid-1", CPU: "cpu-1", MAC: "mac-1"}
	baseID := Derive(base)

	changedUUID := base
	changedUUID.UUID = "uuid-2"
	changedCPU := base
	changedCPU.CPU = "cpu-2"
	changedMAC := base
	changedMAC.MAC = "mac-2"

	seen := map[string]struct{}{baseID: {}}
	for _, attrs := range []DeviceAttributes{changedUUID, changedCPU, changedMAC} {
		id := Derive(attrs)
		_, dup := seen[id]
		assert.False(t, dup, "attributes %+v collided", attrs)
		seen[id] = struct{}{}
	}
}

func TestDeriveTrimsAttributes(t *testing.T) {
	assert.Equal(t,
		Derive(DeviceAttributes{UUID: " uuid ", CPU: " cpu ", MAC: " mac "}),
		Derive(DeviceAttributes{UUID: "uuid", CPU: "cpu", MAC: "mac"}),
	)
}

func TestIsValidFormat(t *testing.T) {
	valid := Derive(DeviceAttributes{UUID: "a", CPU: "b", MAC: "c"})

	assert.True(t, IsValidFormat(valid))
	assert.True(t, IsValidFormat(strings.ToUpper(valid)))
	assert.False(t, IsValidFormat(""))
	assert.False(t, IsValidFormat(valid[:63]))
	assert.False(t, IsValidFormat(valid+"0"))
	assert.False(t, IsValidFormat(strings.Replace(valid, valid[:1], "z", 1)))
}

func TestEqual(t *testing.T) {
	id := Derive(DeviceAttributes{UUID: "a", CPU: "b", MAC: "c"})

	assert.True(t, Equal(id, strings.ToUpper(id)))
	assert.True(t, Equal(" "+id, id))
	assert.False(t, Equal(id, Derive(DeviceAttributes{UUID: "x", CPU: "b", MAC: "c"})))
	assert.False(t, Equal("", ""))
	assert.False(t, Equal(id, ""))
	assert.False(t, Equal("", id))
}
