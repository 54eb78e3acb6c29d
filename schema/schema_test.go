package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayo-electronics/t0ve-hostlink/internal/constants"
	"github.com/ayo-electronics/t0ve-hostlink/record"
)

func TestDefaultCommandEmptyStampsMagicNumber(t *testing.T) {
	ns := DefaultCommandEmpty()
	assert.Equal(t, uint32(constants.MagicNumber), ns["magic_number"])
}

func TestDefaultCommandEmptyPresizesRepeatedStatusFields(t *testing.T) {
	ns := DefaultCommandEmpty()

	offsetReadback, ok := record.GetWithPath(ns, record.Path{"offset_ctrl", "status", "offset_readback"})
	require.True(t, ok)
	assert.Len(t, offsetReadback, 4)

	stub, ok := record.GetWithPath(ns, record.Path{"waveguide_bias", "status", "setpoints_readback", "stub_setpoint"})
	require.True(t, ok)
	assert.Len(t, stub, 10)
}

func TestDefaultAllNoEEPROMSetsCommandDefaults(t *testing.T) {
	ns := DefaultAllNoEEPROM()

	soaEnable, ok := record.GetWithPath(ns, record.Path{"hispeed", "command", "soa_enable"})
	require.True(t, ok)
	assert.Equal(t, []any{false, false, false, false}, soaEnable)

	allow, ok := record.GetWithPath(ns, record.Path{"comms", "command", "allow_connection"})
	require.True(t, ok)
	assert.Equal(t, true, allow)

	_, hasEeprom := record.GetWithPath(ns, record.Path{"cob_eeprom", "command", "do_cob_write_desc"})
	assert.False(t, hasEeprom, "default_all_no_eeprom must not set eeprom command fields")
}

func TestDefaultAllSetsEEPROMFields(t *testing.T) {
	ns := DefaultAll()

	v, ok := record.GetWithPath(ns, record.Path{"cob_eeprom", "command", "do_cob_write_desc"})
	require.True(t, ok)
	assert.Equal(t, false, v)
}

func TestDefaultsFlattenCleanly(t *testing.T) {
	ns := DefaultAll()
	flat := record.Flatten(ns)
	assert.NotEmpty(t, flat)

	unflat := record.Unflatten(flat)
	// Every leaf reachable in ns must still resolve after the round trip.
	reflat := record.Flatten(unflat)
	assert.Equal(t, len(flat), len(reflat))
}
