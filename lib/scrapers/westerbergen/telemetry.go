package westerbergen

import (
	"parkwatch-backend/lib/restyutil"
)

var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
