// Package schema defines the wire-level record types the serdes layer
// exchanges with a node — Communication's tagged union, its three
// payload cases, and the NodeStateDefaults-equivalent helpers that
// materialize a fully-populated reference NodeState. The concrete
// subsystem layout is drawn from the node firmware's schema, but the
// schema/codegen pipeline that produces it is out of scope; this
// package hand-builds the same shape the generated schema would.
package schema

import "github.com/ayo-electronics/t0ve-hostlink/internal/constants"

// PayloadTag discriminates Communication's oneof, matching
// which_payload(record) → (tag, value) from spec.md §2.
type PayloadTag int

const (
	PayloadUnknown PayloadTag = iota
	PayloadNodeState
	PayloadDebugMessage
	PayloadFileAccess
)

func (t PayloadTag) String() string {
	switch t {
	case PayloadNodeState:
		return "node_state"
	case PayloadDebugMessage:
		return "debug_message"
	case PayloadFileAccess:
		return "file_access"
	default:
		return "unknown"
	}
}

// Communication is the outer record carried over the wire, a
// discriminated union over {node_state, debug_message, file_access}.
type Communication struct {
	Tag       PayloadTag
	NodeState NodeState
	Debug     DebugMessage
	File      FileAccess
}

// WhichPayload returns the active oneof case and its value, mirroring
// betterproto's which_one_of discriminator used by the original host
// software.
func WhichPayload(c Communication) (PayloadTag, any) {
	switch c.Tag {
	case PayloadNodeState:
		return PayloadNodeState, c.NodeState
	case PayloadDebugMessage:
		return PayloadDebugMessage, c.Debug
	case PayloadFileAccess:
		return PayloadFileAccess, c.File
	default:
		return PayloadUnknown, nil
	}
}

// NodeState is the nested per-node state/command record: a tree whose
// internal nodes are key→child maps, leaves are primitives. It is the
// reference-template type the mirror layer flattens and validates
// against, and the concrete record.Record this package produces
// defaults for.
type NodeState = map[string]any

// DebugMessage is an async one-line log emitted by the node.
type DebugMessage struct {
	Level string
	Msg   string
}

// FileAccess is a chunked file-transfer request or response.
type FileAccess struct {
	Filename     string
	Offset       uint32
	ReadNotWrite bool
	Data         []byte
}

// Matches reports whether resp correlates with the request req per
// spec.md §3's invariant: same filename, same offset, and a read
// response (the host never issues write requests expecting a reply
// with read_not_write set).
func (req FileAccess) Matches(resp FileAccess) bool {
	return req.Filename == resp.Filename && req.Offset == resp.Offset && resp.ReadNotWrite
}

// FileCatalogEntry is one row of a file listing response.
type FileCatalogEntry struct {
	Filename string
	Filesize uint64
}

// FileCatalog is the ordered listing returned by an empty (list) file
// request.
type FileCatalog struct {
	Entries []FileCatalogEntry
}

// DebugLevels enumerates the known debug levels; topic names are
// lower(level), per spec.md §9's "dynamic enumeration of debug
// levels" note.
var DebugLevels = []string{"INFO", "WARN", "ERROR"}

// subsystem names the firmware schema exposes status/command pairs
// for, grounded on original_source state_proto_node_default.py.
var subsystems = []string{
	"state_supervisor", "multicard", "pm_onboard", "pm_motherboard",
	"offset_ctrl", "hispeed", "cob_temp", "cob_eeprom",
	"waveguide_bias", "neural_mem_manager", "comms",
}

func emptySubsystem() map[string]any {
	return map[string]any{
		"status":  map[string]any{},
		"command": map[string]any{},
	}
}

// DefaultCommandEmpty builds a NodeState with every subsystem's status
// submessage present (zero-valued) and no command fields set, stamped
// with the schema-version magic number — the "synthesized empty
// command" the serdes transmit worker sends when no real command is
// pending, per spec.md §4.2.
func DefaultCommandEmpty() NodeState {
	ns := NodeState{"magic_number": uint32(constants.MagicNumber), "do_system_reset": false}
	for _, name := range subsystems {
		ns[name] = emptySubsystem()
	}

	offsetStatus := ns["offset_ctrl"].(map[string]any)["status"].(map[string]any)
	offsetStatus["offset_readback"] = zeroUint(4)

	hispeedStatus := ns["hispeed"].(map[string]any)["status"].(map[string]any)
	hispeedStatus["tia_adc_readback"] = zeroUint(4)

	wgStatus := ns["waveguide_bias"].(map[string]any)["status"].(map[string]any)
	wgStatus["setpoints_readback"] = map[string]any{
		"stub_setpoint": zeroUint(10),
		"mid_setpoint":  zeroUint(4),
		"bulk_setpoint": zeroUint(2),
	}

	return ns
}

// DefaultAllNoEEPROM extends DefaultCommandEmpty with safe initial
// command-side values for every subsystem except the EEPROM (which is
// locked out in this flavor), matching
// NodeStateDefaults.default_all_no_eeprom.
func DefaultAllNoEEPROM() NodeState {
	ns := DefaultCommandEmpty()

	multicard := ns["multicard"].(map[string]any)["command"].(map[string]any)
	multicard["sel_pd_input_aux_npic"] = false

	pmOnboard := ns["pm_onboard"].(map[string]any)["command"].(map[string]any)
	pmOnboard["regulator_enable"] = false

	pmMotherboard := ns["pm_motherboard"].(map[string]any)["command"].(map[string]any)
	pmMotherboard["regulator_enable"] = false

	offsetCmd := ns["offset_ctrl"].(map[string]any)["command"].(map[string]any)
	offsetCmd["do_readback"] = false
	offsetCmd["offset_set"] = zeroUint(4)

	hispeedCmd := ns["hispeed"].(map[string]any)["command"].(map[string]any)
	hispeedCmd["arm_request"] = false
	hispeedCmd["load_test_sequence"] = false
	hispeedCmd["soa_enable"] = zeroBool(4)
	hispeedCmd["tia_enable"] = zeroBool(4)
	hispeedCmd["soa_dac_drive"] = zeroUint(4)

	wgCmd := ns["waveguide_bias"].(map[string]any)["command"].(map[string]any)
	wgCmd["setpoints"] = map[string]any{
		"stub_setpoint": zeroUint(10),
		"mid_setpoint":  zeroUint(4),
		"bulk_setpoint": zeroUint(2),
	}
	wgCmd["regulator_enable"] = false
	wgCmd["do_readback"] = false

	memCmd := ns["neural_mem_manager"].(map[string]any)["command"].(map[string]any)
	memCmd["check_io_size"] = false
	memCmd["load_test_pattern"] = int64(0)

	commsCmd := ns["comms"].(map[string]any)["command"].(map[string]any)
	commsCmd["allow_connection"] = true

	ns["do_system_reset"] = false
	return ns
}

// DefaultAll extends DefaultAllNoEEPROM with the EEPROM command
// fields, matching NodeStateDefaults.default_all.
func DefaultAll() NodeState {
	ns := DefaultAllNoEEPROM()
	eepromCmd := ns["cob_eeprom"].(map[string]any)["command"].(map[string]any)
	eepromCmd["do_cob_write_desc"] = false
	eepromCmd["cob_desc_set"] = ""
	eepromCmd["cob_write_key"] = int64(0)
	return ns
}

func zeroUint(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = int64(0)
	}
	return out
}

func zeroBool(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = false
	}
	return out
}
