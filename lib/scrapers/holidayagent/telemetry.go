package holidayagent

import (
	"parkwatch-backend/lib/restyutil"
)

var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput dumps every API exchange to the output for
// debugging, typically a restyutil.FilesystemOutput under .dev/.
func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
