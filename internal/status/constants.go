// internal/status/constants.go
package status

// Filter Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// RegistersPerBlock is the fixed size of the status block.
const RegistersPerBlock = 32

// ---- HEADER ----

// RegState holds the interaction state code.
const RegState = 0

// RegTagCount holds the number of tags sensed in the last cycle.
const RegTagCount = 1

// RegLastOutcome holds the last reconciliation outcome code.
const RegLastOutcome = 2

// RegPendingFirst holds the first position of a pending reorder (0 = none).
const RegPendingFirst = 3

// RegFaults holds the collaborator fault bits of the last cycle.
const RegFaults = 4

// ---- POSITIONS ----

// RegPositionStart is the first register of position 1.
const RegPositionStart = 5

// RegistersPerPosition is the span of one position: UID then name.
const RegistersPerPosition = RegistersUID + RegistersName

// RegistersUID holds the 8-byte UID, two bytes per register.
const RegistersUID = 4

// RegistersName holds the 10-byte name, two bytes per register.
const RegistersName = 5

// Registers 5+3*9 = 32 exactly fill the block.

// ---- STATE CODES ----

// StateBoot is reported before the first cycle.
const StateBoot uint16 = 0

// StateNormal is the idle state.
const StateNormal uint16 = 1

// StateReorderPending waits for the second button of an exchange.
const StateReorderPending uint16 = 2

// StateNameResolution is entered for an untracked tag without a name.
const StateNameResolution uint16 = 3

// ---- OUTCOME CODES ----

const (
	OutcomeNoChange       uint16 = 0
	OutcomeRemoved        uint16 = 1
	OutcomeInstalled      uint16 = 2
	OutcomeNameUnresolved uint16 = 3
)

// ---- FAULT BITS ----

const (
	FaultSensor uint16 = 1 << iota
	FaultStore
	FaultLog
)
