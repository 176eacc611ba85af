package repository

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringNullRoundTrip(t *testing.T) {
	assert.Equal(t, sql.NullString{}, StringToNull(""))
	assert.Equal(t, sql.NullString{String: "10.0.0.1", Valid: true}, StringToNull("10.0.0.1"))
	assert.Equal(t, "", NullToString(sql.NullString{String: "stale", Valid: false}))
	assert.Equal(t, "10.0.0.1", NullToString(sql.NullString{String: "10.0.0.1", Valid: true}))
}

func TestMarshalInterfaces(t *testing.T) {
	empty, err := MarshalInterfaces(nil)
	require.NoError(t, err)
	assert.False(t, empty.Valid)

	ns, err := MarshalInterfaces([]string{"Ethernet1", "Ethernet2"})
	require.NoError(t, err)
	assert.Equal(t, `["Ethernet1","Ethernet2"]`, ns.String)
}

func TestDeviceRowToDomain(t *testing.T) {
	row := DeviceRow{
		ManagementAddress: "172.20.20.2",
		Hostname:          "ceos1",
		LoopbackAddress:   StringToNull("10.0.0.1"),
		Username:          StringToNull("admin"),
		InterfacesJSON:    sql.NullString{String: `["Ethernet1","Ethernet2"]`, Valid: true},
	}

	dev, err := row.ToDomain()
	require.NoError(t, err)
	assert.Equal(t, "ceos1", dev.Hostname)
	assert.Equal(t, "10.0.0.1", dev.LoopbackAddress)
	assert.Equal(t, "admin", dev.Credentials.Username)
	assert.Equal(t, []string{"Ethernet1", "Ethernet2"}, dev.InfrastructureInterfaces)

	row.InterfacesJSON = sql.NullString{String: "{not json", Valid: true}
	_, err = row.ToDomain()
	assert.Error(t, err)
}

func TestValidateUpsert(t *testing.T) {
	assert.NoError(t, ValidateUpsert("172.20.20.2", "ceos1"))
	assert.Error(t, ValidateUpsert("", "ceos1"))
	assert.Error(t, ValidateUpsert("172.20.20.2", ""))
}
